// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock is the time source for linefs components that measure
// elapsed time or poll on an interval.
//
// Code takes a [Clock] instead of calling time.Now or time.NewTicker.
// Binaries pass [Real]; tests pass [Fake] and move time forward with
// [FakeClock.Advance]. [FakeClock.WaitForTickers] closes the race
// between a goroutine creating its ticker and the test advancing past
// the first tick:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	go monitor.Run(ctx) // creates a ticker on c
//	c.WaitForTickers(1)
//	c.Advance(time.Second)
package clock
