/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package wol

import (
	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

var (
	// PacketsTotal counts the datagrams and frames handed to the packet handler
	PacketsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sol_packets_total",
			Help: "Number of packets received on the sleep-on-LAN listeners",
		},
	)

	// InvalidPacketsTotal counts rejected packets by validation reason
	InvalidPacketsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sol_invalid_packets_total",
			Help: "Number of packets that were not valid magic packets",
		},
		[]string{"reason"},
	)

	// SuspendRequestsTotal counts the suspend actions triggered by magic packets
	SuspendRequestsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sol_suspend_requests_total",
			Help: "Number of suspend actions triggered by magic packets",
		},
	)

	// SuspendSkippedTotal counts valid packets ignored during the cooldown window
	SuspendSkippedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sol_suspend_skipped_total",
			Help: "Number of valid magic packets ignored during the suspend cooldown",
		},
	)

	// SuspendFailuresTotal counts suspend actions that reported an error
	SuspendFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sol_suspend_failures_total",
			Help: "Number of suspend actions that failed",
		},
	)

	// ReceiveErrorsTotal counts socket read errors, transient or not
	ReceiveErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sol_receive_errors_total",
			Help: "Number of errors while reading from the listening sockets",
		},
	)
)

func init() {
	// Register metrics with controller-runtime's registry
	metrics.Registry.MustRegister(
		PacketsTotal,
		InvalidPacketsTotal,
		SuspendRequestsTotal,
		SuspendSkippedTotal,
		SuspendFailuresTotal,
		ReceiveErrorsTotal,
	)
}
