// Package llm provides the Triage Engine's model-backed adjudication
// client: an Anthropic-on-Bedrock invocation wrapped in the retry policy
// the rest of this module uses for flaky upstreams.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/catherinevee/certguard/internal/logging"
	"github.com/catherinevee/certguard/internal/retry"
)

var log = logging.WithComponent("llm")

// Client is the model-backed completion surface the Triage Engine calls
// per delta batch, matching model_factory.py's create_worker_model plus
// the Strands agent's streamed-then-joined response pattern.
type Client interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// Config configures a BedrockClient, matching shared/config.py's
// bedrock_worker_model_id/aws_region fields.
type Config struct {
	ModelID    string
	Region     string
	MaxRetries int
}

// BedrockClient invokes an Anthropic model via AWS Bedrock's InvokeModel
// API using the Anthropic "messages" request/response envelope, matching
// model_factory.py's create_model (BedrockModel(model_id, region_name)).
type BedrockClient struct {
	client  *bedrockruntime.Client
	modelID string
	retry   retry.Policy
}

// NewBedrockClient builds a BedrockClient from the default AWS credential
// chain, matching create_model's os.getenv("AWS_REGION", "us-east-1")
// fallback.
func NewBedrockClient(ctx context.Context, cfg Config) (*BedrockClient, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("llm: loading aws config: %w", err)
	}

	modelID := cfg.ModelID
	if modelID == "" {
		modelID = "anthropic.claude-3-5-sonnet-20241022-v2:0"
	}

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	log.Info("creating bedrock model client", map[string]interface{}{"model_id": modelID, "region": region})

	return &BedrockClient{
		client:  bedrockruntime.NewFromConfig(awsCfg),
		modelID: modelID,
		retry: retry.Policy{
			MaxAttempts:  maxRetries,
			InitialDelay: 500 * time.Millisecond,
			MaxDelay:     10 * time.Second,
			Multiplier:   2.0,
			Jitter:       true,
			Retryable:    retry.IsTransient,
		},
	}, nil
}

type anthropicContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type anthropicMessage struct {
	Role    string                   `json:"role"`
	Content []anthropicContentBlock `json:"content"`
}

type anthropicRequest struct {
	AnthropicVersion string             `json:"anthropic_version"`
	MaxTokens        int                `json:"max_tokens"`
	Messages         []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []anthropicContentBlock `json:"content"`
	StopReason string                 `json:"stop_reason"`
}

// Complete sends prompt as a single user message and returns the
// concatenated text of every text content block in the reply, matching
// the agent's `async for event in self.model.stream(...)` accumulation
// loop collapsed into a single non-streaming InvokeModel call (Bedrock's
// InvokeModel and InvokeModelWithResponseStream share the same request/
// response envelope; the streaming variant only changes delivery, not
// content, so this keeps the client surface a single blocking call the
// way the rest of this module's external clients are shaped).
func (c *BedrockClient) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if maxTokens <= 0 {
		maxTokens = 8000
	}

	body, err := json.Marshal(anthropicRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        maxTokens,
		Messages: []anthropicMessage{
			{Role: "user", Content: []anthropicContentBlock{{Type: "text", Text: prompt}}},
		},
	})
	if err != nil {
		return "", fmt.Errorf("llm: marshaling request: %w", err)
	}

	var out *bedrockruntime.InvokeModelOutput
	err = retry.Do(ctx, c.retry, func(ctx context.Context) error {
		resp, invokeErr := c.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
			ModelId:     aws.String(c.modelID),
			ContentType: aws.String("application/json"),
			Accept:      aws.String("application/json"),
			Body:        body,
		})
		if invokeErr != nil {
			return invokeErr
		}
		out = resp
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("llm: invoking model %s: %w", c.modelID, err)
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(out.Body, &parsed); err != nil {
		return "", fmt.Errorf("llm: decoding model response: %w", err)
	}

	text := ""
	for _, block := range parsed.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return text, nil
}
