package http_test

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/membank/internal/hooks"
	httpserver "github.com/fyrsmithlabs/membank/internal/http"
)

// ExampleServer demonstrates how to create and start the webhook receiver.
func ExampleServer() {
	logger := zap.NewNop()

	// Real callers pass the memory bank service as the recorder.
	handler := hooks.NewHandler(nil, nil, hooks.NewVerifier("", nil), nil)

	cfg := httpserver.DefaultConfig()
	cfg.Port = 0

	server, err := httpserver.NewServer(handler, logger, cfg)
	if err != nil {
		panic(err)
	}

	go func() {
		if err := server.Start(); err != nil {
			logger.Error("server error", zap.Error(err))
		}
	}()

	// Give server time to start
	time.Sleep(100 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}

	fmt.Println("Server started and stopped successfully")
	// Output: Server started and stopped successfully
}
