package translator

import (
	"fmt"
	"sort"
)

// Factory builds a provider from its configuration block.
type Factory func(cfg ServiceConfig) TranslationService

var registry = map[string]Factory{
	"youdao":     func(cfg ServiceConfig) TranslationService { return NewYoudaoService(cfg) },
	"zhipu":      func(cfg ServiceConfig) TranslationService { return NewZhipuService(cfg) },
	"openrouter": func(cfg ServiceConfig) TranslationService { return NewOpenRouterService(cfg) },
	"ollama":     func(cfg ServiceConfig) TranslationService { return NewOllamaTranslator(cfg) },
	"google":     func(cfg ServiceConfig) TranslationService { return NewGoogleService(cfg) },
	"mymemory":   func(cfg ServiceConfig) TranslationService { return NewMyMemoryService(cfg) },
	"systran":    func(cfg ServiceConfig) TranslationService { return NewSystranService(cfg) },
}

// Names returns the known provider ids in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New builds the named provider.
func New(name string, cfg ServiceConfig) (TranslationService, error) {
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q", name)
	}
	return f(cfg), nil
}
