// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package roaring

import "github.com/prometheus/client_golang/prometheus"

const (
	MetricContainerConversions = "container_conversions_total"
	MetricIteratorSeeks        = "iterator_seeks_total"
)

// Seek kinds, as reported in the kind label of MetricIteratorSeeks.
const (
	seekSkipContainer  = "skip-container"
	seekIntraContainer = "intra-container"
	seekExhausted      = "exhausted"
)

var CounterContainerConversions = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "roaring",
		Name:      MetricContainerConversions,
		Help:      "Number of container encoding changes, by source and target type.",
	},
	[]string{
		"from",
		"to",
	},
)

var CounterIteratorSeeks = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "roaring",
		Name:      MetricIteratorSeeks,
		Help:      "Number of iterator seeks, by how far they moved.",
	},
	[]string{
		"kind",
	},
)

// conversionCounters is indexed by [from][to] type ID.
var conversionCounters [4][4]prometheus.Counter

var seekCounters = map[string]prometheus.Counter{}

func init() {
	prometheus.MustRegister(CounterContainerConversions)
	prometheus.MustRegister(CounterIteratorSeeks)

	for from := ContainerArray; from <= ContainerRun; from++ {
		for to := ContainerArray; to <= ContainerRun; to++ {
			conversionCounters[from][to] = CounterContainerConversions.WithLabelValues(containerTypeNames[from], containerTypeNames[to])
		}
	}
	for _, kind := range []string{seekSkipContainer, seekIntraContainer, seekExhausted} {
		seekCounters[kind] = CounterIteratorSeeks.WithLabelValues(kind)
	}
}

// countConversion records a change of container encoding. Payload swaps
// which keep the type are not counted.
func countConversion(from, to byte) {
	if from == to || from == ContainerNil {
		return
	}
	conversionCounters[from][to].Inc()
}

func seekCounter(kind string) prometheus.Counter {
	return seekCounters[kind]
}
