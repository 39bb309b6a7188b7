/*
 * Copyright (c) 2018-2021, NVIDIA CORPORATION. All rights reserved.
 */
package hk_test

import (
	"time"

	"github.com/aistorebroker/pstorebroker/hk"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Housekeeper", func() {
	It("fires a registered action and reschedules it", func() {
		fired := make(chan struct{}, 8)
		hk.DefaultHK.Reg("spec-action", func() time.Duration {
			fired <- struct{}{}
			return 5 * time.Millisecond
		}, time.Millisecond)

		Eventually(fired, time.Second).Should(Receive())
		Eventually(fired, time.Second).Should(Receive())

		hk.DefaultHK.Unreg("spec-action")
	})

	It("stops invoking an unregistered action", func() {
		fired := make(chan struct{}, 8)
		hk.DefaultHK.Reg("spec-action-2", func() time.Duration {
			fired <- struct{}{}
			return time.Millisecond
		}, time.Millisecond)

		Eventually(fired, time.Second).Should(Receive())
		hk.DefaultHK.Unreg("spec-action-2")

		Eventually(func() bool { return hk.DefaultHK.Pending("spec-action-2") }).Should(BeFalse())
	})

	It("continues running after a registered action panics", func() {
		calls := make(chan struct{}, 8)
		first := true
		hk.DefaultHK.Reg("spec-panic", func() time.Duration {
			calls <- struct{}{}
			if first {
				first = false
				panic("boom")
			}
			return time.Millisecond
		}, time.Millisecond)

		Eventually(calls, time.Second).Should(Receive())
		Eventually(calls, 2*time.Second).Should(Receive())

		hk.DefaultHK.Unreg("spec-panic")
	})
})
