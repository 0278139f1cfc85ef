// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
//go:build roaringparanoia
// +build roaringparanoia

package roaring

import "fmt"

const roaringParanoia = true

// CheckN verifies that the container's cached count is correct. Note
// that this has two definitions, depending on the presence of the
// roaringparanoia build tag.
func (c *Container) CheckN() {
	if c == nil {
		return
	}
	if err := c.check(); err != nil {
		panic(fmt.Sprintf("CheckN (%p): %v", c, err))
	}
}
