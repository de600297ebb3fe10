package cli

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"

	"reprosign/internal/types"
)

type ceremonyPayload struct {
	Role         string   `json:"role"`
	ParentID     string   `json:"parent_id,omitempty"`
	Participants []string `json:"participants"`
}

func newKeysCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage the signing key hierarchy",
	}
	cmd.AddCommand(newKeysListCommand())
	cmd.AddCommand(newKeysDeriveCommand())
	cmd.AddCommand(newKeysRevokeCommand())
	return cmd
}

func newKeysListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List keys and their states",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runKeysList(cmd.Context())
		},
	}
}

func runKeysList(ctx context.Context) error {
	var keys []types.KeyRecord
	client := newAPIClient()
	if err := client.do(ctx, http.MethodGet, "/v1/keys", nil, nil, &keys); err != nil {
		return err
	}
	for _, key := range keys {
		fmt.Printf("%s  %-18s  %-8s  parent=%s\n", key.ID, key.Role, key.State, key.ParentID)
	}
	return nil
}

func newKeysDeriveCommand() *cobra.Command {
	var (
		role         string
		parentID     string
		participants []string
	)
	cmd := &cobra.Command{
		Use:   "derive",
		Short: "Run a key ceremony to derive a new key",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runKeysDerive(cmd.Context(), role, parentID, participants)
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "Key role (root, repository-signing, app-signing)")
	cmd.Flags().StringVar(&parentID, "parent", "", "Parent key id")
	cmd.Flags().StringSliceVar(&participants, "participant", nil, "Ceremony participant")
	return cmd
}

func runKeysDerive(ctx context.Context, role, parentID string, participants []string) error {
	var rec types.KeyRecord
	client := newAPIClient()
	err := client.do(ctx, http.MethodPost, "/v1/keys", ceremonyPayload{
		Role:         role,
		ParentID:     parentID,
		Participants: participants,
	}, nil, &rec)
	if err != nil {
		return err
	}
	fmt.Printf("created: %s (%s)\n", rec.ID, rec.Role)
	return nil
}

func newKeysRevokeCommand() *cobra.Command {
	var (
		reason       string
		participants []string
	)
	cmd := &cobra.Command{
		Use:   "revoke <key-id>",
		Short: "Revoke a key and everything derived from it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeysRevoke(cmd.Context(), args[0], reason, participants)
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "Reason for revocation")
	cmd.Flags().StringSliceVar(&participants, "participant", nil, "Ceremony participant, repeatable")
	return cmd
}

func runKeysRevoke(ctx context.Context, keyID, reason string, participants []string) error {
	client := newAPIClient()
	q := url.Values{"reason": {reason}}
	for _, p := range participants {
		q.Add("participant", p)
	}
	path := fmt.Sprintf("/v1/keys/%s?%s", keyID, q.Encode())
	if err := client.do(ctx, http.MethodDelete, path, nil, nil, nil); err != nil {
		return err
	}
	fmt.Printf("revoked: %s\n", keyID)
	return nil
}
