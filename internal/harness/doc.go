// Package harness runs scripted file-operation scenarios against a fresh
// device and compares the resulting trace against golden files.
//
// # Scenario Format
//
//	name: literal
//	description: "Saturating writes near the end of the buffer"
//	capacity: 512
//	steps:
//	  - op: open
//	  - op: write
//	    fill: { byte: 0x41, count: 10 }
//	    expect: { n: 10, pos: 10 }
//	  - op: seek
//	    offset: 505
//	    whence: start
//	  - op: write
//	    data: "BBBBBBBBBB"
//	    expect: { n: 7 }
//	  - op: read
//	    session: other
//	    count: 4
//	    fault: true
//	    expect: { error: INVALID_ARGUMENT }
//	assertions:
//	  - type: buffer
//	    offset: 505
//	    fill: { byte: 0x42, count: 7 }
//	  - type: position
//	    pos: 512
//	  - type: sessions
//	    count: 1
//
// Steps run on named sessions (default "s1"). A session that was never
// opened or has been released is a bad handle and fails with
// INVALID_ARGUMENT, the same as a closed file descriptor would.
//
// # Determinism
//
// Each run uses a fresh framework with sequential IDs and a discarded
// logger, so the same scenario always yields the same trace bytes.
package harness
