// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package roaring

import (
	"fmt"
	"strings"
)

// String lists the bitmap's values, wrapping lines at about 70 columns.
func (b *Bitmap) String() string {
	var r strings.Builder
	r.WriteString("c(")
	width := 0
	first := true
	b.ForEach(func(v uint32) {
		s := fmt.Sprintf("%v", v)
		if !first {
			s = ", " + s
			if width > 70 {
				r.WriteString(",\n")
				s = s[2:]
				width = 0
			}
		}
		first = false
		width += len(s)
		r.WriteString(s)
	})
	r.WriteString(")")
	return r.String()
}

// ContainerSummary returns one line per container giving its key, its
// encoding, its cardinality and its encoded size.
func (b *Bitmap) ContainerSummary() string {
	var r strings.Builder
	for _, ci := range b.Info().Containers {
		fmt.Fprintf(&r, "[key %05v] %-6s n=%-5v size=%-5v runs=%v\n", ci.Key, ci.Type, ci.N, ci.Size, ci.Runs)
	}
	return r.String()
}
