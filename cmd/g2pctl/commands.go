package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"g2p/internal/curation/schema"
	"g2p/internal/curation/xref"
	jwttoken "g2p/internal/jwt_token"
	"g2p/internal/lgd/assembler"
	"g2p/internal/lgd/models"
	"g2p/internal/lgd/stableid"
	"g2p/internal/reference"
	dErrors "g2p/pkg/domain-errors"
)

// invalidError marks a submission that was read but did not pass checks; the
// problems have already been printed.
type invalidError struct{ n int }

func (e invalidError) Error() string { return fmt.Sprintf("%d problem(s) found", e.n) }

type rootOptions struct {
	referencePath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "g2pctl",
		Short:         "Offline tooling for G2P curation submissions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.referencePath, "reference", "", "reference catalog YAML (defaults to the bundled catalog)")

	root.AddCommand(
		newValidateCmd(opts),
		newReadinessCmd(opts),
		newAssembleCmd(opts),
		newTokenCmd(),
	)
	return root
}

func (o *rootOptions) catalog() (*reference.Catalog, error) {
	if o.referencePath == "" {
		return reference.Default(), nil
	}
	return reference.Load(o.referencePath)
}

func newValidateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE",
		Short: "Check a submission against the schema and cross-reference rules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			ref, err := opts.catalog()
			if err != nil {
				return err
			}
			if _, err := check(raw, ref); err != nil {
				return report(cmd.OutOrStdout(), err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "valid")
			return nil
		},
	}
}

func newReadinessCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "readiness FILE",
		Short: "List what a draft still needs before it can be published",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			ref, err := opts.catalog()
			if err != nil {
				return err
			}
			sub, err := schema.Validate(raw)
			if err != nil {
				return report(cmd.OutOrStdout(), err)
			}
			var chromosome string
			if locus, ok := ref.Locus(sub.Locus); ok {
				chromosome = locus.Sequence
			}
			missing := schema.Readiness(sub, chromosome)
			if missing == nil {
				missing = []dErrors.Field{}
			}
			return writeJSON(cmd.OutOrStdout(), map[string]any{"ready": len(missing) == 0, "missing": missing})
		},
	}
}

func newAssembleCmd(opts *rootOptions) *cobra.Command {
	var start int64
	cmd := &cobra.Command{
		Use:   "assemble FILE",
		Short: "Print the record a submission would produce",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			ref, err := opts.catalog()
			if err != nil {
				return err
			}
			sub, err := check(raw, ref)
			if err != nil {
				return report(cmd.OutOrStdout(), err)
			}
			rec, err := assembler.New(stableid.NewMemory(start), ref).Assemble(cmd.Context(), sub)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), rec)
		},
	}
	cmd.Flags().Int64Var(&start, "after", 0, "allocate the stable ID after this counter value")
	return cmd
}

func newTokenCmd() *cobra.Command {
	var (
		user    string
		curator bool
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an API access token signed with JWT_SIGNING_KEY",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			key := os.Getenv("JWT_SIGNING_KEY")
			if key == "" {
				return fmt.Errorf("JWT_SIGNING_KEY is not set")
			}
			issuer := envOr("JWT_ISSUER", "g2p")
			audience := envOr("JWT_AUDIENCE", "g2p-api")

			var roles []string
			if curator {
				roles = append(roles, jwttoken.RoleCurator)
			}
			token, err := jwttoken.NewJWTService(key, issuer, audience).GenerateAccessToken(user, roles, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "user ID placed in the token")
	cmd.Flags().BoolVar(&curator, "curator", false, "grant the curator role")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func check(raw []byte, ref *reference.Catalog) (*models.Submission, error) {
	sub, err := schema.Validate(raw, schema.WithPanels(func(name string) bool {
		_, ok := ref.Panel(name)
		return ok
	}))
	if err != nil {
		return nil, err
	}
	if err := xref.Check(sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// report prints field problems and converts them into an invalidError.
func report(w io.Writer, err error) error {
	fields := dErrors.FieldsOf(err)
	if len(fields) == 0 {
		return err
	}
	for _, f := range fields {
		if f.Identifier != "" {
			fmt.Fprintf(w, "%s: %s (%s)\n", f.Path, f.Reason, f.Identifier)
			continue
		}
		fmt.Fprintf(w, "%s: %s\n", f.Path, f.Reason)
	}
	return invalidError{n: len(fields)}
}

// readInput reads FILE, or stdin when FILE is "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read submission: %w", err)
	}
	return data, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
