package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jonathan/article-agent/internal/config"
	"github.com/jonathan/article-agent/internal/observability"
	"github.com/jonathan/article-agent/internal/server"
	"github.com/jonathan/article-agent/internal/types"
)

var (
	sampleTags    []string
	sampleAnalyze bool
	sampleForce   bool

	materialChannel string
	materialType    string
	materialTags    []string
	materialSource  string
	materialWeight  int
	materialFile    string
	embedLimit      int

	editorName     string
	editorEmail    string
	editorPassword string
)

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Manage channel style samples",
}

var sampleImportCmd = &cobra.Command{
	Use:   "import <channel> <url>",
	Short: "Fetch an article and store it as a style sample",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		ch, err := a.catalog.ResolveChannel(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if ch == nil {
			return &types.RecordNotFoundError{Kind: "channel", Key: args[0]}
		}
		sample, err := a.catalog.ImportSample(cmd.Context(), ch.ID, args[1], sampleTags)
		if err != nil {
			return err
		}
		if sampleAnalyze {
			if sample, err = a.catalog.AnalyzeSample(cmd.Context(), sample.ID, false); err != nil {
				return err
			}
		}
		observability.NewPrinter(cmd.OutOrStdout()).PrintSample(sample)
		return nil
	},
}

var sampleAnalyzeCmd = &cobra.Command{
	Use:   "analyze <sample-id>",
	Short: "Extract the style profile of a sample",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid sample ID %q: %w", args[0], err)
		}
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		sample, err := a.catalog.AnalyzeSample(cmd.Context(), id, sampleForce)
		if err != nil {
			return err
		}
		observability.NewPrinter(cmd.OutOrStdout()).PrintSample(sample)
		return nil
	},
}

var materialCmd = &cobra.Command{
	Use:   "material",
	Short: "Manage the material library",
}

var materialAddCmd = &cobra.Command{
	Use:   "add [content]",
	Short: "Add a material (content as argument or --file)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		content := strings.Join(args, " ")
		if materialFile != "" {
			data, err := os.ReadFile(materialFile)
			if err != nil {
				return fmt.Errorf("failed to read material: %w", err)
			}
			content = string(data)
		}

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		m := &types.Material{
			Content:       content,
			MaterialType:  materialType,
			Tags:          materialTags,
			Source:        materialSource,
			QualityWeight: materialWeight,
		}
		if materialChannel != "" {
			ch, err := a.catalog.ResolveChannel(cmd.Context(), materialChannel)
			if err != nil {
				return err
			}
			if ch == nil {
				return &types.RecordNotFoundError{Kind: "channel", Key: materialChannel}
			}
			m.ChannelID = &ch.ID
		}
		if err := a.catalog.AddMaterial(cmd.Context(), m); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "material %s added (embedded: %t)\n", m.ID, len(m.Embedding) > 0)
		return nil
	},
}

var materialEmbedCmd = &cobra.Command{
	Use:   "embed",
	Short: "Backfill embeddings for materials stored without one",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.catalog.EmbedPending(cmd.Context(), embedLimit)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d material(s) embedded\n", n)
		return nil
	},
}

var editorCmd = &cobra.Command{
	Use:   "editor",
	Short: "Manage editor accounts",
}

var editorCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an editor account (prompts for the password on a terminal)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		password := editorPassword
		if password == "" {
			fd := int(os.Stdin.Fd())
			if !term.IsTerminal(fd) {
				return fmt.Errorf("--password is required when stdin is not a terminal")
			}
			fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
			raw, err := term.ReadPassword(fd)
			fmt.Fprintln(cmd.ErrOrStderr())
			if err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}
			password = string(raw)
		}

		req := &types.RegisterEditorRequest{Name: editorName, Email: editorEmail, Password: password}
		if err := validator.New().Struct(req); err != nil {
			return err
		}

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		if a.database == nil {
			return fmt.Errorf("editor accounts are only persisted by the postgres backend")
		}

		hasher, err := config.NewPasswordHasher(a.cfg.Auth)
		if err != nil {
			return err
		}
		editor, err := server.NewEditorService(a.catalog.Store(), hasher).Register(cmd.Context(), req)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "editor %s created (%s)\n", editor.ID, editor.Email)
		return nil
	},
}

func init() {
	sampleImportCmd.Flags().StringSliceVar(&sampleTags, "tag", nil, "Custom tag (repeatable)")
	sampleImportCmd.Flags().BoolVar(&sampleAnalyze, "analyze", false, "Analyze the style after importing")
	sampleAnalyzeCmd.Flags().BoolVar(&sampleForce, "force", false, "Re-analyze an analyzed sample")
	sampleCmd.AddCommand(sampleImportCmd, sampleAnalyzeCmd)

	f := materialAddCmd.Flags()
	f.StringVar(&materialChannel, "channel", "", "Channel ID or slug (default: global material)")
	f.StringVar(&materialType, "type", "", "reference, case, reflection, feedback or other")
	f.StringSliceVar(&materialTags, "tag", nil, "Tag (repeatable)")
	f.StringVar(&materialSource, "source", "", "Where the material came from")
	f.IntVar(&materialWeight, "weight", 0, "Quality weight 1-5 (default 3)")
	f.StringVar(&materialFile, "file", "", "Read the content from a file")
	materialEmbedCmd.Flags().IntVar(&embedLimit, "limit", 100, "Maximum materials to embed")
	materialCmd.AddCommand(materialAddCmd, materialEmbedCmd)

	editorCreateCmd.Flags().StringVar(&editorName, "name", "", "Display name")
	editorCreateCmd.Flags().StringVar(&editorEmail, "email", "", "Login email")
	editorCreateCmd.Flags().StringVar(&editorPassword, "password", "", "Password (prompted when omitted)")
	editorCmd.AddCommand(editorCreateCmd)

	rootCmd.AddCommand(sampleCmd, materialCmd, editorCmd)
}
