// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package servicenow

// Fold merges a batch of incoming fragments into an existing buffer and
// returns the new buffer. Pure function: no I/O, inputs are not mutated.
// The pending store persists the result.
//
// Per-fragment rules, applied in arrival order:
//
//   - ActionMsg: appended unconditionally. Status fragments accumulate as
//     a progress trail while the conversation is in flight.
//   - OutputCard / OutputText: the working buffer is replaced with just
//     this fragment. Real content always wins over the status trail, and a
//     fresh card resets a previous answer.
//   - Picker: appended only when no picker is already buffered. A second
//     open multi-choice prompt would leave the UI ambiguous, so it is
//     dropped.
//   - anything else: coerced to an OutputText fragment carrying a
//     best-effort string rendering of the original payload, then treated
//     as content (replace).
func Fold(existing, incoming []Fragment) []Fragment {
	buf := make([]Fragment, len(existing))
	copy(buf, existing)

	for _, frag := range incoming {
		switch frag.Kind {
		case KindActionMsg:
			buf = append(buf, frag)
		case KindOutputCard, KindOutputText:
			buf = []Fragment{frag}
		case KindPicker:
			if !hasPicker(buf) {
				buf = append(buf, frag)
			}
		default:
			buf = []Fragment{coerceToText(frag)}
		}
	}
	return buf
}

func hasPicker(fragments []Fragment) bool {
	for _, frag := range fragments {
		if frag.Kind == KindPicker {
			return true
		}
	}
	return false
}

// coerceToText renders an unrecognized fragment as OutputText. The raw
// payload JSON is the best string rendering we have for an unknown shape.
func coerceToText(frag Fragment) Fragment {
	return TextFragment(string(frag.Payload))
}
