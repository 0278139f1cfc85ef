// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
//go:build !roaringparanoia
// +build !roaringparanoia

package roaring

const roaringParanoia = false

// CheckN verifies that a container's cached count is correct, but this
// is the version which does nothing, because the check is expensive.
// Build with the roaringparanoia tag to get the real one.
func (c *Container) CheckN() {
}
