package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"

	"twin/internal/logging"
)

const bedrockProviderName = "bedrock"

// ConverseAPI is the subset of the Bedrock runtime client used here.
type ConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockProvider calls the Bedrock Converse API.
type BedrockProvider struct {
	client ConverseAPI
	model  string
	logger logging.Logger
}

// NewBedrockProvider binds client to a model id.
func NewBedrockProvider(client ConverseAPI, model string) (*BedrockProvider, error) {
	if client == nil {
		return nil, errors.New("bedrock provider requires a client")
	}
	if strings.TrimSpace(model) == "" {
		return nil, errors.New("bedrock provider requires a model id")
	}
	return &BedrockProvider{
		client: client,
		model:  model,
		logger: logging.NewComponentLogger("BedrockProvider"),
	}, nil
}

// NewBedrockGateway is NewGateway over a BedrockProvider.
func NewBedrockGateway(client ConverseAPI, model string, cfg GatewayConfig, opts ...Option) (*ProviderGateway, error) {
	provider, err := NewBedrockProvider(client, model)
	if err != nil {
		return nil, err
	}
	return NewGateway(provider, cfg, opts...)
}

func (p *BedrockProvider) Name() string {
	return bedrockProviderName
}

func (p *BedrockProvider) Converse(ctx context.Context, req Request) (Result, error) {
	input := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(p.model),
		Messages: toBedrockMessages(req.Messages),
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens:   aws.Int32(int32(req.Params.MaxTokens)),
			Temperature: aws.Float32(float32(req.Params.Temperature)),
			TopP:        aws.Float32(float32(req.Params.TopP)),
		},
	}
	if req.System != "" {
		input.System = []types.SystemContentBlock{
			&types.SystemContentBlockMemberText{Value: req.System},
		}
	}

	out, err := p.client.Converse(ctx, input)
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			p.logger.Warn("Bedrock error (%s): %s", apiErr.ErrorCode(), apiErr.ErrorMessage())
		}
		return Result{}, fmt.Errorf("bedrock converse: %w", err)
	}

	text, err := bedrockText(out)
	if err != nil {
		return Result{}, err
	}
	result := Result{Text: text, StopReason: string(out.StopReason)}
	if out.Usage != nil {
		result.TokensUsed = int(aws.ToInt32(out.Usage.TotalTokens))
	}
	return result, nil
}

func toBedrockMessages(messages []Message) []types.Message {
	converted := make([]types.Message, 0, len(messages))
	for _, msg := range messages {
		role := types.ConversationRoleUser
		if msg.Role == RoleAssistant {
			role = types.ConversationRoleAssistant
		}
		converted = append(converted, types.Message{
			Role:    role,
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: msg.Content}},
		})
	}
	return converted
}

func bedrockText(out *bedrockruntime.ConverseOutput) (string, error) {
	if out == nil {
		return "", errors.New("bedrock converse: empty response")
	}
	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return "", fmt.Errorf("bedrock converse: unexpected output %T", out.Output)
	}
	for _, block := range msg.Value.Content {
		if text, ok := block.(*types.ContentBlockMemberText); ok {
			return text.Value, nil
		}
	}
	return "", ErrEmptyReply
}
