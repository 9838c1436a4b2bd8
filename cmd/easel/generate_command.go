package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"easel/internal/queue"
)

func newGenerateCommand(ctx *commandContext) *cobra.Command {
	var providerFlag string
	var typeFlag string
	var payloadFlag string
	var payloadFile string
	var noQueue bool

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Submit a generation request",
		Long: "Submit a generation request to the daemon. When the queue is enabled " +
			"the request is queued and the queue ID is printed; otherwise the " +
			"provider is called directly and the raw result is printed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := resolvePayload(payloadFlag, payloadFile)
			if err != nil {
				return err
			}
			if queue.EmptyPayload(payload) {
				return fmt.Errorf("payload must be a non-empty JSON object")
			}
			if _, ok := queue.ParseProvider(providerFlag); !ok {
				return fmt.Errorf("unknown provider %q", providerFlag)
			}

			request := map[string]any{
				"generationType": typeFlag,
				"provider":       strings.ToLower(strings.TrimSpace(providerFlag)),
				"payload":        json.RawMessage(payload),
			}
			if noQueue {
				useQueue := false
				request["useQueue"] = &useQueue
			}

			return ctx.withClient(func(client *daemonClient) error {
				raw, queued, err := client.Generate(request)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if queued {
					var resp struct {
						QueueID  string `json:"queueId"`
						Position int    `json:"queuePosition"`
					}
					if err := json.Unmarshal(raw, &resp); err == nil && resp.QueueID != "" {
						fmt.Fprintf(out, "Queued as %s (position %d)\n", resp.QueueID, resp.Position)
						return nil
					}
				}
				fmt.Fprintln(out, strings.TrimSpace(string(raw)))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&providerFlag, "provider", "p", "fal", "Generation provider (fal, minimax, runway, bfl, replicate)")
	cmd.Flags().StringVarP(&typeFlag, "type", "t", "image", "Generation type (image, video, tts, text-to-music, ...)")
	cmd.Flags().StringVar(&payloadFlag, "payload", "", "Request payload as inline JSON")
	cmd.Flags().StringVar(&payloadFile, "payload-file", "", "Read the request payload from a JSON file (- for stdin)")
	cmd.Flags().BoolVar(&noQueue, "no-queue", false, "Bypass the queue and call the provider directly")

	return cmd
}

func resolvePayload(inline, file string) (json.RawMessage, error) {
	inline = strings.TrimSpace(inline)
	file = strings.TrimSpace(file)
	switch {
	case inline != "" && file != "":
		return nil, fmt.Errorf("--payload and --payload-file are mutually exclusive")
	case inline != "":
		return json.RawMessage(inline), nil
	case file == "-":
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("read payload from stdin: %w", err)
		}
		return data, nil
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read payload file: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("a payload is required (--payload or --payload-file)")
	}
}
