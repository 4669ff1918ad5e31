package cover

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"sharpcover/internal/cil"
	"sharpcover/internal/config"
)

// DefaultHitPrefix is the recording destination prefix baked into
// injected probes; hit-output files share it, suffixed per process.
const DefaultHitPrefix = "coverage.hits"

// ErrNoSymbols is returned for an assembly compiled without sequence
// point data; instrumenting it would produce a manifest that cannot be
// traced back to source.
var ErrNoSymbols = errors.New("assembly has no symbol information")

// Session drives one instrumentation pass: assemblies in configuration
// order, types and methods in declaration order, instructions in offset
// order. The ordering is what makes probe indices reproducible, so the
// pass is strictly sequential.
type Session struct {
	rules        *config.Config
	loader       cil.Loader
	log          *zap.Logger
	hitPrefix    string
	manifestPath string
}

// NewSession builds a session. A nil logger disables progress logging.
func NewSession(rules *config.Config, loader cil.Loader, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{
		rules:        rules,
		loader:       loader,
		log:          log,
		hitPrefix:    DefaultHitPrefix,
		manifestPath: DefaultManifestFile,
	}
}

// SetManifestPath overrides where the manifest is written.
func (s *Session) SetManifestPath(path string) {
	s.manifestPath = path
}

// SetHitPrefix overrides the destination prefix baked into probes.
func (s *Session) SetHitPrefix(prefix string) {
	s.hitPrefix = prefix
}

// Run instruments every configured assembly in place and returns the
// total probe count. Any failure aborts the pass; a half-written
// manifest is only ever paired with a non-zero error.
func (s *Session) Run() (int, error) {
	manifest, err := CreateManifest(s.manifestPath)
	if err != nil {
		return 0, err
	}
	rewriter := NewRewriter(NewFilter(s.rules), manifest, s.hitPrefix)

	for _, path := range s.rules.Assemblies {
		if err := s.instrumentAssembly(rewriter, path); err != nil {
			manifest.Close()
			return rewriter.Count(), err
		}
	}
	if err := manifest.Close(); err != nil {
		return rewriter.Count(), err
	}
	return rewriter.Count(), nil
}

func (s *Session) instrumentAssembly(rewriter *Rewriter, path string) error {
	asm, err := s.loader.Load(path)
	if err != nil {
		return err
	}
	if !asm.HasSymbols {
		return fmt.Errorf("assembly %q: %w", path, ErrNoSymbols)
	}
	filter := rewriter.filter

	assemblyProbes := 0
	for _, t := range asm.Types {
		if !filter.TypeEligible(t) {
			s.log.Debug("type skipped", zap.String("type", t.FullName))
			continue
		}
		for _, m := range t.Methods {
			if m.Body == nil {
				continue
			}
			if !filter.MethodEligible(m) {
				s.log.Debug("method skipped", zap.String("method", m.FullName))
				continue
			}
			added, err := rewriter.InstrumentMethod(asm.Name, m)
			assemblyProbes += added
			if err != nil {
				return fmt.Errorf("instrument %s: %w", m.FullName, err)
			}
			s.log.Debug("method instrumented",
				zap.String("method", m.FullName),
				zap.Int("probes", added))
		}
	}

	if err := s.loader.Save(asm, path); err != nil {
		return err
	}
	s.log.Info("assembly instrumented",
		zap.String("assembly", asm.Name),
		zap.String("path", path),
		zap.Int("probes", assemblyProbes))
	return nil
}
