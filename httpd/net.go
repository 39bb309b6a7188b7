/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package httpd

import (
	"net"

	jsoniter "github.com/json-iterator/go"
	"github.com/valyala/fasthttp"
)

func listen(addr string) (net.Listener, error) { return net.Listen("tcp", addr) }

func writeJSON(ctx *fasthttp.RequestCtx, v any) error {
	b, err := jsoniter.Marshal(v)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		return err
	}
	ctx.SetBody(b)
	return nil
}
