package model

import (
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/Sourav19o7/ppe-detector-sub000/pkg/logger"
)

// Provider owns the currently loaded scorer. Reload swaps the artifact
// atomically: in-flight inferences keep the snapshot they acquired, later
// calls see the new one. When no artifact has ever loaded, Current returns
// the rule-based fallback.
type Provider struct {
	current  atomic.Value // boxedScorer
	fallback Scorer
}

// boxedScorer gives atomic.Value a single concrete type to store; storing
// differing concrete Scorer implementations directly would panic.
type boxedScorer struct{ s Scorer }

func NewProvider(artifactPath string) *Provider {
	p := &Provider{fallback: NewFallback()}

	if artifactPath != "" {
		if ensemble, err := Load(artifactPath); err == nil {
			p.current.Store(boxedScorer{s: ensemble})
		} else {
			logger.Warn("No trained model artifact, starting on rule-based fallback",
				zap.String("path", artifactPath),
				zap.Error(err),
			)
		}
	}

	return p
}

func (p *Provider) Current() Scorer {
	if b, ok := p.current.Load().(boxedScorer); ok {
		return b.s
	}
	return p.fallback
}

func (p *Provider) Fallback() Scorer {
	return p.fallback
}

// Reload loads the artifact at path and swaps it in. On failure the previous
// scorer stays active.
func (p *Provider) Reload(path string) error {
	ensemble, err := Load(path)
	if err != nil {
		return err
	}

	p.current.Store(boxedScorer{s: ensemble})
	logger.Info("Scoring model reloaded", zap.String("version", ensemble.Version()))
	return nil
}

// Swap installs an already-constructed scorer (used after in-process training).
func (p *Provider) Swap(s Scorer) {
	p.current.Store(boxedScorer{s: s})
}
