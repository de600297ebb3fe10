package cli

import (
	"context"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"reprosign/internal/types"
)

const authorityHeader = "X-Authority-Token"

type suspendPayload struct {
	ArtifactID string `json:"artifact_id"`
	Reason     string `json:"reason"`
}

func newSuspendCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "suspend",
		Short: "Manage artifact distribution suspensions",
	}
	cmd.PersistentFlags().String("token", "", "Authority token")
	_ = viper.BindPFlag("authority_token", cmd.PersistentFlags().Lookup("token"))

	cmd.AddCommand(newSuspendApplyCommand())
	cmd.AddCommand(newSuspendLiftCommand())
	cmd.AddCommand(newSuspendHistoryCommand())
	return cmd
}

func authorityHeaders() map[string]string {
	return map[string]string{authorityHeader: viper.GetString("authority_token")}
}

func newSuspendApplyCommand() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "apply <artifact-id>",
		Short: "Suspend an artifact from distribution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSuspendApply(cmd.Context(), args[0], reason)
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "Reason for the suspension")
	return cmd
}

func runSuspendApply(ctx context.Context, artifactID, reason string) error {
	var rec types.SuspensionRecord
	client := newAPIClient()
	err := client.do(ctx, http.MethodPost, "/v1/suspensions", suspendPayload{
		ArtifactID: artifactID,
		Reason:     reason,
	}, authorityHeaders(), &rec)
	if err != nil {
		return err
	}
	fmt.Printf("suspended: %s (by %s)\n", rec.ArtifactID, rec.Authority)
	return nil
}

func newSuspendLiftCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "lift <artifact-id>",
		Short: "Lift an active suspension",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSuspendLift(cmd.Context(), args[0])
		},
	}
}

func runSuspendLift(ctx context.Context, artifactID string) error {
	var rec types.SuspensionRecord
	client := newAPIClient()
	err := client.do(ctx, http.MethodDelete, "/v1/suspensions/"+artifactID, nil, authorityHeaders(), &rec)
	if err != nil {
		return err
	}
	fmt.Printf("lifted: %s (by %s)\n", rec.ArtifactID, rec.LiftedBy)
	return nil
}

func newSuspendHistoryCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "history <artifact-id>",
		Short: "Show an artifact's suspension history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSuspendHistory(cmd.Context(), args[0])
		},
	}
}

func runSuspendHistory(ctx context.Context, artifactID string) error {
	var history []types.SuspensionRecord
	client := newAPIClient()
	if err := client.do(ctx, http.MethodGet, "/v1/suspensions/"+artifactID, nil, nil, &history); err != nil {
		return err
	}
	for _, rec := range history {
		state := "active"
		if !rec.Active {
			state = "lifted"
		}
		fmt.Printf("%s  %s  %s  %s\n", rec.CreatedAt.Format("2006-01-02 15:04:05"), state, rec.Authority, rec.Reason)
	}
	return nil
}
