package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/proxy-router/pkg/logger"
)

var _ = Describe("Logger", func() {
	ctx := context.Background()

	Describe("New", func() {
		It("should create a dev logger", func() {
			Expect(logger.New("info", false, "dev")).NotTo(BeNil())
		})

		It("should create a prod logger", func() {
			Expect(logger.New("info", true, "prod")).NotTo(BeNil())
		})
	})

	Describe("ParseLevel", func() {
		DescribeTable("maps level names",
			func(name string, expected slog.Level) {
				Expect(logger.ParseLevel(name)).To(Equal(expected))
			},
			Entry("debug", "debug", slog.LevelDebug),
			Entry("info", "info", slog.LevelInfo),
			Entry("warn", "WARN", slog.LevelWarn),
			Entry("error", "error", slog.LevelError),
			Entry("unknown defaults to info", "invalid", slog.LevelInfo),
		)
	})

	Describe("NewWithWriter", func() {
		var buf *bytes.Buffer

		BeforeEach(func() {
			buf = &bytes.Buffer{}
		})

		It("should respect the configured level", func() {
			log := logger.NewWithWriter(buf, "warn", false, "dev")

			Expect(log.Enabled(ctx, slog.LevelInfo)).To(BeFalse())
			Expect(log.Enabled(ctx, slog.LevelWarn)).To(BeTrue())
		})

		It("should write JSON with the environment attribute in prod", func() {
			log := logger.NewWithWriter(buf, "info", false, "prod")
			log.Info("Service is back up", slog.String("service", "api"))

			var record map[string]any
			Expect(json.Unmarshal(buf.Bytes(), &record)).To(Succeed())
			Expect(record).To(HaveKeyWithValue("environment", "prod"))
			Expect(record).To(HaveKeyWithValue("service", "api"))
			Expect(record).To(HaveKeyWithValue("msg", "Service is back up"))
		})

		It("should write text outside prod", func() {
			log := logger.NewWithWriter(buf, "debug", false, "dev")
			log.Debug("No route matched", slog.String("path", "/x"))

			Expect(buf.String()).To(ContainSubstring("environment=dev"))
			Expect(buf.String()).To(ContainSubstring("path=/x"))
		})
	})
})
