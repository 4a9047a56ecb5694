package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/openfroyo/monitor-provider/pkg/engine"
	"github.com/openfroyo/monitor-provider/pkg/handler"
	"github.com/openfroyo/monitor-provider/pkg/model"
	"github.com/openfroyo/monitor-provider/pkg/monitorapi"
)

const shutdownTimeout = 5 * time.Second

// Output formats for invoke.
const (
	outputJSON  = "json"
	outputTable = "table"
)

func newInvokeCommand() *cobra.Command {
	var (
		action string
		output string
		apiURL string
	)

	cmd := &cobra.Command{
		Use:   "invoke <request-file>",
		Short: "Run one lifecycle invocation",
		Long: `Run one Create, Read, Update or Delete invocation against the control plane
and print the resulting progress event.

The request file is YAML or JSON. Use "-" to read it from stdin.`,
		Example: `  # Create a monitor
  monitor-provider invoke create.yaml

  # Read it back, overriding the action in the file
  monitor-provider invoke --action READ read.yaml --output table

  # create.yaml
  action: CREATE
  desiredResourceState:
    Name: homepage
    Uri: https://example.org
    ApiKey: my-key`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != outputJSON && output != outputTable {
				return fmt.Errorf("unsupported output format %q", output)
			}

			req, err := readRequest(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			if action != "" {
				a, err := engine.ParseAction(action)
				if err != nil {
					return err
				}
				req.Action = a
			}

			cfg, tel, err := loadRuntime()
			if err != nil {
				return err
			}
			defer shutdownTelemetry(tel)

			clientCfg := cfg.API.ClientConfig()
			if apiURL != "" {
				clientCfg.BaseURL = apiURL
			}
			client, err := monitorapi.NewClient(clientCfg, monitorapi.WithTelemetry(tel))
			if err != nil {
				return err
			}

			policies, err := loadPolicies(cmd.Context(), cfg.Policies, tel)
			if err != nil {
				return err
			}

			dispatcher := engine.NewDispatcher(model.TypeName, tel)
			if err := dispatcher.RegisterHandler(handler.New(client, tel, handler.WithAdmitter(policies))); err != nil {
				return err
			}

			log.Debug().
				Str("action", string(req.Action)).
				Str("token", req.ClientRequestToken).
				Str("api", client.BaseURL()).
				Msg("Invoking handler")

			event := dispatcher.Invoke(cmd.Context(), req)
			if err := printEvent(cmd.OutOrStdout(), event, output); err != nil {
				return err
			}
			if !event.IsSuccess() {
				return fmt.Errorf("%s failed: %s", req.Action, event.ErrorCode)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&action, "action", "a", "", "override the action in the request file")
	cmd.Flags().StringVarP(&output, "output", "o", outputJSON, "output format (json, table)")
	cmd.Flags().StringVar(&apiURL, "api-url", "", "control plane base URL (overrides config)")

	return cmd
}

// requestFile is the on-disk form of an invocation. Resource states are
// free-form YAML and are re-encoded as JSON for the handler.
type requestFile struct {
	engine.Request `yaml:",inline"`

	Desired  map[string]interface{} `yaml:"desiredResourceState"`
	Previous map[string]interface{} `yaml:"previousResourceState"`
}

func readRequest(stdin io.Reader, path string) (*engine.Request, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read request: %w", err)
	}
	return parseRequest(data)
}

// parseRequest decodes a YAML or JSON invocation request.
func parseRequest(data []byte) (*engine.Request, error) {
	var file requestFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse request: %w", err)
	}

	req := file.Request
	if req.TypeName == "" {
		req.TypeName = model.TypeName
	}
	if req.ClientRequestToken == "" {
		req.ClientRequestToken = uuid.NewString()
	}

	var err error
	if req.DesiredResourceState, err = encodeState(file.Desired); err != nil {
		return nil, fmt.Errorf("invalid desiredResourceState: %w", err)
	}
	if req.PreviousResourceState, err = encodeState(file.Previous); err != nil {
		return nil, fmt.Errorf("invalid previousResourceState: %w", err)
	}
	return &req, nil
}

func encodeState(state map[string]interface{}) (json.RawMessage, error) {
	if state == nil {
		return nil, nil
	}
	return json.Marshal(state)
}

func printEvent(w io.Writer, event *engine.ProgressEvent, format string) error {
	if format == outputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(event)
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{
		text.FgHiCyan.Sprint("FIELD"),
		text.FgHiCyan.Sprint("VALUE"),
	})

	status := text.FgGreen.Sprint(event.Status)
	if !event.IsSuccess() {
		status = text.FgRed.Sprint(event.Status)
	}
	t.AppendRow(table.Row{"Status", status})
	if event.ErrorCode != "" {
		t.AppendRow(table.Row{"ErrorCode", event.ErrorCode})
	}
	if event.Message != "" {
		t.AppendRow(table.Row{"Message", event.Message})
	}

	if len(event.ResourceModel) > 0 {
		var props map[string]interface{}
		if err := json.Unmarshal(event.ResourceModel, &props); err != nil {
			return fmt.Errorf("failed to decode resource model: %w", err)
		}
		t.AppendSeparator()
		keys := make([]string, 0, len(props))
		for k := range props {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			t.AppendRow(table.Row{k, formatValue(props[k])})
		}
	}

	t.Render()
	return nil
}

func formatValue(v interface{}) string {
	switch val := v.(type) {
	case []interface{}:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, fmt.Sprint(item))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(val)
	}
}
