// Azure adapters. Both Azure services speak the OpenAI chat completions
// format with their own addressing and auth:
//   - Azure OpenAI: {endpoint}/openai/deployments/{name}/chat/completions
//     with an api-key header; the model is implied by the deployment.
//   - Azure AI Inference: {endpoint}/chat/completions with bearer auth and
//     an explicit model field.
package llm

import (
	"net/http"
	"strings"
)

const (
	azureOpenAIAPIVersion     = "2024-06-01"
	azureAIInferenceAPIVersion = "2024-05-01-preview"
)

// NewAzureOpenAIProvider creates a handle for an Azure OpenAI deployment.
func NewAzureOpenAIProvider(endpoint, apiKey, deploymentName string) *OpenAICompatProvider {
	base := strings.TrimSuffix(endpoint, "/")
	return &OpenAICompatProvider{
		name:      "AzureOpenAI",
		chatURL:   base + "/openai/deployments/" + deploymentName + "/chat/completions?api-version=" + azureOpenAIAPIVersion,
		healthURL: "",
		// The deployment stands in for the model id; Azure ignores the
		// model field on deployment-scoped calls.
		model:      deploymentName,
		online:     true,
		headers:    map[string]string{"api-key": apiKey},
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
}

// NewAzureAIInferenceProvider creates a handle for an Azure AI Inference
// (model catalog) endpoint.
func NewAzureAIInferenceProvider(endpoint, apiKey, model string) *OpenAICompatProvider {
	base := strings.TrimSuffix(endpoint, "/")
	return &OpenAICompatProvider{
		name:       "AzureAIInference",
		chatURL:    base + "/chat/completions?api-version=" + azureAIInferenceAPIVersion,
		healthURL:  "",
		model:      model,
		online:     true,
		headers:    map[string]string{"Authorization": "Bearer " + apiKey},
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
}
