package cli

import (
	"context"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"reprosign/internal/types"
)

type authorizeOptions struct {
	RequestID    string
	AuthorizerID string
	Digest       string
	Deny         bool
}

type authorizePayload struct {
	AuthorizerID string `json:"authorizer_id"`
	Decision     string `json:"decision"`
	Digest       string `json:"digest"`
}

type authorizeReply struct {
	State     types.RequestState `json:"state"`
	Approvals int                `json:"approvals"`
	Signature string             `json:"signature,omitempty"`
}

func newAuthorizeCommand() *cobra.Command {
	opts := authorizeOptions{}
	cmd := &cobra.Command{
		Use:   "authorize",
		Short: "Cast an authorization vote on a signing request",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAuthorize(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.RequestID, "request", "", "Signing request id")
	cmd.Flags().StringVar(&opts.AuthorizerID, "authorizer", "", "Authorizer identity")
	cmd.Flags().StringVar(&opts.Digest, "digest", "", "Artifact digest the vote is bound to")
	cmd.Flags().BoolVar(&opts.Deny, "deny", false, "Deny instead of approve")
	return cmd
}

func runAuthorize(ctx context.Context, opts authorizeOptions) error {
	decision := types.VoteApprove
	if opts.Deny {
		decision = types.VoteDeny
	}

	var reply authorizeReply
	client := newAPIClient()
	path := fmt.Sprintf("/v1/signing-requests/%s/authorize", opts.RequestID)
	err := client.do(ctx, http.MethodPost, path, authorizePayload{
		AuthorizerID: opts.AuthorizerID,
		Decision:     string(decision),
		Digest:       opts.Digest,
	}, nil, &reply)
	if err != nil {
		return err
	}

	fmt.Printf("state: %s\napprovals: %d\n", reply.State, reply.Approvals)
	if reply.Signature != "" {
		fmt.Printf("signature: %s\n", reply.Signature)
	}
	return nil
}
