package cli

import (
	"encoding/json"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/turtacn/clauselens/internal/application/profiling"
	"github.com/turtacn/clauselens/internal/application/refinement"
	"github.com/turtacn/clauselens/internal/intelligence/clause_ner"
	"github.com/turtacn/clauselens/pkg/client"
	"github.com/turtacn/clauselens/pkg/errors"
	"github.com/turtacn/clauselens/pkg/types/profile"
)

type profileOptions struct {
	predictions string
	maxLen      int
	stride      int
	batchSize   int
	refine      bool
}

// readInput reads the file named by args[0], or stdin for none or "-".
func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if len(args) == 0 || args[0] == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeBadRequest, "read input")
	}
	return data, nil
}

func newProfileCmd() *cobra.Command {
	opts := &profileOptions{}
	cmd := &cobra.Command{
		Use:   "profile [FILE|-]",
		Short: "Profile a document",
		Long: "Profile reads a plain-text document and prints its structured profile.\n\n" +
			"With --predictions the token predictions are read from a JSON file instead\n" +
			"of calling the model server. With --server the API server does the work.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProfile(cmd, args, opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.predictions, "predictions", "", "JSON file with precomputed token predictions")
	f.IntVar(&opts.maxLen, "max-len", 0, "tokens per window (config default when 0)")
	f.IntVar(&opts.stride, "stride", 0, "window overlap in tokens (config default when 0)")
	f.IntVar(&opts.batchSize, "batch-size", 0, "windows per inference batch (config default when 0)")
	f.BoolVar(&opts.refine, "refine", false, "also print the refined profile")
	return cmd
}

type profileOutput struct {
	Profile *profile.Profile        `json:"profile"`
	Refined *profile.RefinedProfile `json:"refined,omitempty"`
}

func runProfile(cmd *cobra.Command, args []string, opts *profileOptions) error {
	cc, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	data, err := readInput(cmd, args)
	if err != nil {
		return err
	}
	ctx, cancel := cc.commandContext(cmd)
	defer cancel()

	inf := cc.Config.Inference
	window := clause_ner.WindowOptions{MaxLen: inf.MaxLen, Stride: inf.Stride, BatchSize: inf.BatchSize}
	if opts.maxLen > 0 {
		window.MaxLen = opts.maxLen
	}
	if opts.stride > 0 {
		window.Stride = opts.stride
	}
	if opts.batchSize > 0 {
		window.BatchSize = opts.batchSize
	}

	var out profileOutput
	if cc.ServerAddr != "" && opts.predictions == "" {
		api, err := cc.apiClient()
		if err != nil {
			return err
		}
		resp, err := api.Profile(ctx, client.ProfileRequest{
			Text: string(data), MaxLen: window.MaxLen, Stride: window.Stride, BatchSize: window.BatchSize,
		}, opts.refine)
		if err != nil {
			return err
		}
		out = profileOutput{Profile: resp.Profile, Refined: resp.Refined}
	} else {
		classifier, err := cc.classifier(opts.predictions)
		if err != nil {
			return err
		}
		svc, err := profiling.NewService(classifier, cc.Logger)
		if err != nil {
			return err
		}
		if out.Profile, err = svc.Profile(ctx, string(data), window); err != nil {
			return err
		}
		if opts.refine {
			if out.Refined, err = refinement.Refine(out.Profile); err != nil {
				return err
			}
		}
	}

	w := cmd.OutOrStdout()
	if cc.OutputFormat == "json" {
		if !opts.refine {
			return printJSON(w, out.Profile)
		}
		return printJSON(w, out)
	}
	renderProfile(w, out.Profile)
	if out.Refined != nil {
		_, _ = io.WriteString(w, "\n── refined ──\n")
		renderRefined(w, out.Refined)
	}
	return nil
}

// classifier picks the static classifier for a predictions file, else the
// configured model server.
func (cc *CLIContext) classifier(predictions string) (clause_ner.TokenClassifier, error) {
	if predictions != "" {
		f, err := os.Open(predictions)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeBadRequest, "open predictions")
		}
		defer f.Close()
		pred, err := clause_ner.LoadPrediction(f)
		if err != nil {
			return nil, err
		}
		return clause_ner.NewStaticClassifier(cc.Config.Inference.ModelName, pred), nil
	}
	inf := cc.Config.Inference
	return clause_ner.NewRemoteClassifier(clause_ner.RemoteConfig{
		Endpoint:     inf.Endpoint,
		ModelName:    inf.ModelName,
		Timeout:      inf.Timeout,
		Retries:      inf.Retries,
		RetryBackoff: inf.RetryBackoff,

		BreakerThreshold: inf.BreakerThreshold,
		BreakerReset:     inf.BreakerReset,
	}, cc.Logger)
}

func newRefineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refine [FILE|-]",
		Short: "Refine a profile produced by `clauselens profile -o json`",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			data, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			if len(data) == 0 {
				return errors.NoUsableInput("no profile on input")
			}
			var p profile.Profile
			if err := json.Unmarshal(data, &p); err != nil {
				return errors.Wrap(err, errors.ErrCodeBadRequest, "input is not a profile")
			}

			var refined *profile.RefinedProfile
			if cc.ServerAddr != "" {
				api, err := cc.apiClient()
				if err != nil {
					return err
				}
				ctx, cancel := cc.commandContext(cmd)
				defer cancel()
				refined, err = api.Refine(ctx, &p)
				if err != nil {
					return err
				}
			} else if refined, err = refinement.Refine(&p); err != nil {
				return err
			}

			if cc.OutputFormat == "json" {
				return printJSON(cmd.OutOrStdout(), refined)
			}
			renderRefined(cmd.OutOrStdout(), refined)
			return nil
		},
	}
}
