package logging

import (
	"sort"

	"go.uber.org/zap/zapcore"
)

// newSampledCore wraps core so each configured level is sampled with its
// own rate. Levels without a rate, Error and above by default, always pass.
func newSampledCore(core zapcore.Core, cfg SamplingConfig) zapcore.Core {
	if !cfg.Enabled || len(cfg.Levels) == 0 {
		return core
	}

	levels := make([]zapcore.Level, 0, len(cfg.Levels))
	for lvl := range cfg.Levels {
		levels = append(levels, lvl)
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i] < levels[j] })

	cores := make([]zapcore.Core, 0, len(levels)+1)
	for _, lvl := range levels {
		rate := cfg.Levels[lvl]
		only := &levelFilterCore{Core: core, only: lvl, exact: true}
		cores = append(cores, zapcore.NewSamplerWithOptions(only, cfg.Tick, rate.Initial, rate.Thereafter))
	}
	cores = append(cores, &levelFilterCore{Core: core, skip: cfg.Levels})
	return zapcore.NewTee(cores...)
}

// levelFilterCore passes either exactly one level or every level not in skip.
type levelFilterCore struct {
	zapcore.Core
	only  zapcore.Level
	exact bool
	skip  map[zapcore.Level]LevelSamplingConfig
}

func (c *levelFilterCore) Enabled(lvl zapcore.Level) bool {
	if c.exact && lvl != c.only {
		return false
	}
	if _, sampled := c.skip[lvl]; sampled {
		return false
	}
	return c.Core.Enabled(lvl)
}

func (c *levelFilterCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.Enabled(e.Level) {
		return ce
	}
	return c.Core.Check(e, ce)
}

// With creates a child core that preserves level filtering.
func (c *levelFilterCore) With(fields []zapcore.Field) zapcore.Core {
	return &levelFilterCore{
		Core:  c.Core.With(fields),
		only:  c.only,
		exact: c.exact,
		skip:  c.skip,
	}
}
