// Copyright 2025 Leeaandrob
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"context"
	"net/http"
	"os"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// DefaultDashScopeEndpoint is the OpenAI compatible-mode base URL for
// DashScope (international region).
const DefaultDashScopeEndpoint = "https://dashscope-intl.aliyuncs.com/compatible-mode/v1"

// ClientConfig holds the settings for a DashScope compatible-mode client.
type ClientConfig struct {
	// APIKey is the DashScope API key (DASHSCOPE_API_KEY).
	APIKey string

	// BaseURL overrides the API endpoint. Empty selects
	// DefaultDashScopeEndpoint.
	BaseURL string

	// Timeout is the per-request HTTP timeout. Zero selects 60s, which
	// also covers batch file uploads.
	Timeout time.Duration
}

// EmbeddingAPI is the slice of the OpenAI-compatible client the
// embedding providers need. *openai.Client satisfies it.
type EmbeddingAPI interface {
	CreateEmbeddings(ctx context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

// BatchAPI is the slice of the OpenAI-compatible client the narrative
// batch service needs: file upload, batch lifecycle, and result
// download. *openai.Client satisfies it.
type BatchAPI interface {
	CreateFileBytes(ctx context.Context, request openai.FileBytesRequest) (openai.File, error)
	CreateBatch(ctx context.Context, request openai.CreateBatchRequest) (openai.BatchResponse, error)
	RetrieveBatch(ctx context.Context, batchID string) (openai.BatchResponse, error)
	CancelBatch(ctx context.Context, batchID string) (openai.BatchResponse, error)
	GetFileContent(ctx context.Context, fileID string) (openai.RawResponse, error)
}

// NewDashScopeClient builds an OpenAI-compatible client pointed at the
// DashScope compatible-mode endpoint.
func NewDashScopeClient(cfg ClientConfig) *openai.Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultDashScopeEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = cfg.BaseURL
	oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	return openai.NewClientWithConfig(oc)
}

// DashScopeClientFromEnv builds a client from DASHSCOPE_API_KEY and
// DASHSCOPE_ENDPOINT. The key may be empty; callers that require one
// should validate before issuing requests.
func DashScopeClientFromEnv() *openai.Client {
	return NewDashScopeClient(ClientConfig{
		APIKey:  os.Getenv("DASHSCOPE_API_KEY"),
		BaseURL: os.Getenv("DASHSCOPE_ENDPOINT"),
	})
}
