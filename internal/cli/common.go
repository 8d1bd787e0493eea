package cli

import (
	"fmt"

	"github.com/halcyon-sh/warden/internal/atlas"
	"github.com/halcyon-sh/warden/internal/config"
	"github.com/halcyon-sh/warden/internal/policy"
	"github.com/halcyon-sh/warden/internal/resolver"
)

// buildResolver constructs a resolver from the merged environment/flag
// configuration: policy file, genesis seed, queue size, atlas directory.
func buildResolver(cfg config.Runtime) (*resolver.Resolver, error) {
	policyCfg, err := policy.LoadConfig(cfg.PolicyPath)
	if err != nil {
		return nil, fmt.Errorf("load policy: %w", err)
	}

	res := resolver.New(resolver.Config{
		GenesisSeed: cfg.GenesisSeed,
		QueueSize:   cfg.QueueSize,
		Policy:      policyCfg,
	})

	if cfg.AtlasDir != "" {
		manifests, err := atlas.LoadDir(cfg.AtlasDir)
		if err != nil {
			res.Close()
			return nil, err
		}
		for _, m := range manifests {
			if err := res.LoadAtlas(m); err != nil {
				res.Close()
				return nil, err
			}
		}
	}
	return res, nil
}

// runtimeFromFlags merges WARDEN_* environment defaults with explicit
// flag values. Flags win when set.
func runtimeFromFlags(atlasDir, policyPath, genesisSeed string, port, queueSize int) (config.Runtime, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return config.Runtime{}, err
	}
	if atlasDir != "" {
		cfg.AtlasDir = atlasDir
	}
	if policyPath != "" {
		cfg.PolicyPath = policyPath
	}
	if genesisSeed != "" {
		cfg.GenesisSeed = genesisSeed
	}
	if port != 0 {
		cfg.Port = port
	}
	if queueSize != 0 {
		cfg.QueueSize = queueSize
	}
	return cfg, nil
}
