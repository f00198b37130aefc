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

package health

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
)

var _ = Describe("Server", func() {
	var (
		ready    atomic.Bool
		registry *prometheus.Registry
		counter  prometheus.Counter
		server   *Server
	)

	BeforeEach(func() {
		ready.Store(false)
		registry = prometheus.NewRegistry()
		counter = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sol_test_events_total",
			Help: "Test counter",
		})
		registry.MustRegister(counter)
		server = NewServer(":0", ready.Load, registry, logr.Discard())
	})

	get := func(path string) (int, string) {
		rec := httptest.NewRecorder()
		server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		body, err := io.ReadAll(rec.Result().Body)
		Expect(err).NotTo(HaveOccurred())
		return rec.Code, string(body)
	}

	It("always reports healthy", func() {
		code, body := get("/healthz")
		Expect(code).To(Equal(http.StatusOK))
		Expect(body).To(Equal("ok"))
	})

	It("reports readiness from the listener", func() {
		code, _ := get("/readyz")
		Expect(code).To(Equal(http.StatusServiceUnavailable))

		ready.Store(true)
		code, body := get("/readyz")
		Expect(code).To(Equal(http.StatusOK))
		Expect(body).To(Equal("ready"))
	})

	It("is not ready without a readiness func", func() {
		server = NewServer(":0", nil, registry, logr.Discard())
		code, _ := get("/readyz")
		Expect(code).To(Equal(http.StatusServiceUnavailable))
	})

	It("serves the gathered metrics", func() {
		counter.Add(3)
		code, body := get("/metrics")
		Expect(code).To(Equal(http.StatusOK))
		Expect(body).To(ContainSubstring("sol_test_events_total 3"))
	})

	It("treats empty and zero addresses as disabled", func() {
		Expect(Enabled("")).To(BeFalse())
		Expect(Enabled("0")).To(BeFalse())
		Expect(Enabled(":8080")).To(BeTrue())
	})

	It("serves over TCP and stops when the context is cancelled", func() {
		l, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())
		addr := l.Addr().String()
		Expect(l.Close()).To(Succeed())

		server = NewServer(addr, ready.Load, registry, logr.Discard())
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() {
			defer GinkgoRecover()
			done <- server.Start(ctx)
		}()

		Eventually(func() error {
			resp, err := http.Get(fmt.Sprintf("http://%s/healthz", addr))
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("status %d", resp.StatusCode)
			}
			return nil
		}, 5*time.Second, 50*time.Millisecond).Should(Succeed())

		cancel()
		Eventually(done, 10*time.Second).Should(Receive(BeNil()))
	})
})
