package plugin_registry

import (
	"fmt"
	"sort"

	"github.com/serisow/smartdoc/services/llm_service"
	"github.com/serisow/smartdoc/services/rag_service"
)

// PluginRegistry holds the model providers the service can be configured
// with, by name.
type PluginRegistry struct {
	llmServices map[string]llm_service.LLMService
	embedders   map[string]rag_service.Embedder
}

func NewPluginRegistry() *PluginRegistry {
	return &PluginRegistry{
		llmServices: make(map[string]llm_service.LLMService),
		embedders:   make(map[string]rag_service.Embedder),
	}
}

// RegisterLLMService registers a completion provider
func (pr *PluginRegistry) RegisterLLMService(name string, service llm_service.LLMService) {
	pr.llmServices[name] = service
}

// GetLLMService returns a completion provider by name
func (pr *PluginRegistry) GetLLMService(name string) (llm_service.LLMService, bool) {
	service, ok := pr.llmServices[name]
	return service, ok
}

// RegisterEmbedder registers an embedding provider
func (pr *PluginRegistry) RegisterEmbedder(name string, embedder rag_service.Embedder) {
	pr.embedders[name] = embedder
}

func (pr *PluginRegistry) GetEmbedder(name string) (rag_service.Embedder, bool) {
	embedder, ok := pr.embedders[name]
	return embedder, ok
}

// ResolveLLMService is GetLLMService with an error naming the known providers.
func (pr *PluginRegistry) ResolveLLMService(name string) (llm_service.LLMService, error) {
	if service, ok := pr.llmServices[name]; ok {
		return service, nil
	}
	return nil, fmt.Errorf("unknown llm provider: %s (registered: %v)", name, pr.LLMServiceNames())
}

func (pr *PluginRegistry) LLMServiceNames() []string {
	names := make([]string, 0, len(pr.llmServices))
	for name := range pr.llmServices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
