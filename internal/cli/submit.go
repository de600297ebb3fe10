package cli

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/spf13/cobra"

	"reprosign/internal/types"
)

type submitOptions struct {
	SourceRef      string
	Signature      string
	RecipeID       string
	Params         []string
	QuorumSize     int
	MatchThreshold int
}

type submitPayload struct {
	SourceRef       string            `json:"source_ref"`
	SourceSignature string            `json:"source_signature"`
	RecipeID        string            `json:"recipe_id"`
	RecipeParams    map[string]string `json:"recipe_params,omitempty"`
	QuorumSize      int               `json:"quorum_size,omitempty"`
	MatchThreshold  int               `json:"match_threshold,omitempty"`
}

type submitReply struct {
	JobID            string                      `json:"job_id"`
	State            types.JobState              `json:"state"`
	Reason           string                      `json:"reason,omitempty"`
	Decision         *types.VerificationDecision `json:"decision,omitempty"`
	SigningRequestID string                      `json:"signing_request_id,omitempty"`
}

func newSubmitCommand() *cobra.Command {
	opts := submitOptions{}
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a source reference for verified building",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSubmit(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.SourceRef, "source", "", "Pinned source reference")
	cmd.Flags().StringVar(&opts.Signature, "signature", "", "Publisher signature over the source reference")
	cmd.Flags().StringVar(&opts.RecipeID, "recipe", "", "Build recipe id")
	cmd.Flags().StringSliceVar(&opts.Params, "param", nil, "Recipe parameter (key=value)")
	cmd.Flags().IntVar(&opts.QuorumSize, "quorum", 0, "Number of independent builders")
	cmd.Flags().IntVar(&opts.MatchThreshold, "threshold", 0, "Matching digests required for consensus")
	return cmd
}

func runSubmit(ctx context.Context, opts submitOptions) error {
	params, err := parseParams(opts.Params)
	if err != nil {
		return err
	}

	var reply submitReply
	client := newAPIClient()
	err = client.do(ctx, http.MethodPost, "/v1/build-jobs", submitPayload{
		SourceRef:       opts.SourceRef,
		SourceSignature: opts.Signature,
		RecipeID:        opts.RecipeID,
		RecipeParams:    params,
		QuorumSize:      opts.QuorumSize,
		MatchThreshold:  opts.MatchThreshold,
	}, nil, &reply)
	if err != nil {
		return err
	}

	fmt.Printf("job: %s\nstate: %s\n", reply.JobID, reply.State)
	if reply.Reason != "" {
		fmt.Printf("reason: %s\n", reply.Reason)
	}
	if reply.Decision != nil && reply.Decision.WinningDigest != "" {
		fmt.Printf("digest: %s\n", reply.Decision.WinningDigest)
	}
	if reply.SigningRequestID != "" {
		fmt.Printf("signing request: %s\n", reply.SigningRequestID)
	}
	return nil
}

func parseParams(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	params := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("invalid parameter %q, expected key=value", pair))
		}
		params[key] = value
	}
	return params, nil
}
