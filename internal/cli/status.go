package cli

import (
	"context"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"reprosign/internal/types"
)

type statusReply struct {
	Job      types.BuildJob              `json:"job"`
	Decision *types.VerificationDecision `json:"decision,omitempty"`
	Request  *types.SigningRequest       `json:"signing_request,omitempty"`
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show a build job's state, decision and signing request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context(), args[0])
		},
	}
}

func runStatus(ctx context.Context, jobID string) error {
	var reply statusReply
	client := newAPIClient()
	if err := client.do(ctx, http.MethodGet, "/v1/build-jobs/"+jobID, nil, nil, &reply); err != nil {
		return err
	}

	fmt.Printf("job: %s\nstate: %s\n", reply.Job.ID, reply.Job.State)
	if reply.Job.Reason != "" {
		fmt.Printf("reason: %s\n", reply.Job.Reason)
	}
	if reply.Decision != nil {
		fmt.Printf("outcome: %s\n", reply.Decision.Outcome)
		if reply.Decision.WinningDigest != "" {
			fmt.Printf("digest: %s\n", reply.Decision.WinningDigest)
		}
		fmt.Printf("agreeing: %d disagreeing: %d\n", len(reply.Decision.Agreeing), len(reply.Decision.Disagreeing))
	}
	if reply.Request != nil {
		fmt.Printf("signing request: %s (%s)\n", reply.Request.ID, reply.Request.State)
	}
	return nil
}
