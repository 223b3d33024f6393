// Package logging provides structured logging for menucart.
//
// # Overview
//
// Logging package wraps Zap with:
//   - Custom Trace level (-2, below Debug)
//   - Automatic context field injection (request id, cart key)
//   - Level-aware sampling (errors never sampled)
//
// Library packages take a plain *zap.Logger; binaries build a Logger here
// and hand out Underlying().
//
// # Usage
//
//	cfg, err := logging.FromSettings("debug", "console")
//	if err != nil {
//	    return err
//	}
//	logger, err := logging.NewLogger(cfg)
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
// Log with context:
//
//	ctx = logging.WithRequestID(ctx, "req_123")
//	ctx = logging.WithCartKey(ctx, "cart")
//	logger.Info(ctx, "cart updated", zap.Int("items", 3))
//
// Output includes the correlation fields:
//
//	{
//	  "ts": "2026-03-02T10:15:30Z",
//	  "level": "info",
//	  "msg": "cart updated",
//	  "request.id": "req_123",
//	  "cart.key": "cart",
//	  "items": 3
//	}
//
// # Sampling
//
// Each level listed in SamplingConfig.Levels is sampled at its own rate per
// tick:
//   - Trace: first 1, drop rest
//   - Debug: first 10, drop rest
//   - Info: first 100, then 1 every 10
//   - Warn: first 100, then 1 every 100
//   - Error+: never sampled
//
// # Testing
//
// Use TestLogger for test assertions:
//
//	tl := logging.NewTestLogger()
//	tl.Info(ctx, "test message", zap.String("key", "value"))
//	tl.AssertLogged(t, zapcore.InfoLevel, "test message")
//	tl.AssertField(t, "test message", "key", "value")
//	tl.AssertCorrelated(t, "cart updated", "req_123", "cart")
package logging
