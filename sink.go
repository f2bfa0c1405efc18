// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package psoc6flash

// Sink is the UI collaborator the Programmer reports status and
// progress through instead of holding any process-wide state itself.
// Implementations must be safe to call from a background worker
// goroutine and are responsible for posting onward to their own UI
// thread if one exists.
type Sink interface {
	Log(text string)
	Progress(done, total uint32)
}

// nopSink discards everything; used when the caller doesn't supply one.
type nopSink struct{}

func (nopSink) Log(string)          {}
func (nopSink) Progress(_, _ uint32) {}

// reportProgress downshifts done/total by 8 bits once total exceeds
// 2^24, so 32-bit progress bars driven by narrower UI toolkits
// don't overflow.
func reportProgress(sink Sink, done, total uint32) {
	const shiftThreshold = 1 << 24
	if total > shiftThreshold {
		done >>= 8
		total >>= 8
	}
	sink.Progress(done, total)
}
