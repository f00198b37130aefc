//go:build !linux

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
	"context"
	"fmt"

	"github.com/go-logr/logr"
)

// RawListener is only available on Linux
type RawListener struct {
	interfaceName string
}

// RawListenerOptions tunes the raw Ethernet listener
type RawListenerOptions struct {
	Promiscuous    bool
	AttachBPF      bool
	RecvTimeoutSec int
}

// NewRawListener returns a listener whose Start always fails
func NewRawListener(interfaceName string, _ *Handler, _ logr.Logger) *RawListener {
	return &RawListener{interfaceName: interfaceName}
}

// NewRawListenerWithOptions returns a listener whose Start always fails
func NewRawListenerWithOptions(interfaceName string, _ *Handler, _ logr.Logger, _ RawListenerOptions) *RawListener {
	return &RawListener{interfaceName: interfaceName}
}

func (r *RawListener) Start(_ context.Context) error {
	return fmt.Errorf("%w: interface %s", ErrRawUnsupported, r.interfaceName)
}

func (r *RawListener) Stop() {}
