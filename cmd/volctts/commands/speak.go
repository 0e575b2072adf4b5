package commands

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/haivivi/volctts/pkg/volctts"
)

var (
	speakInput      string
	speakOutput     string
	speakEndpoint   string
	speakAppID      string
	speakAccessKey  string
	speakResourceID string
)

// speakRequest is the YAML request file format.
type speakRequest struct {
	AppID      string   `yaml:"app_id"`
	AccessKey  string   `yaml:"access_key"`
	ResourceID string   `yaml:"resource_id"`
	Speaker    string   `yaml:"speaker"`
	SessionID  string   `yaml:"session_id"`
	Texts      []string `yaml:"texts"`
}

var speakCmd = &cobra.Command{
	Use:   "speak",
	Short: "Synthesize text fragments to raw PCM",
	Long: `Drive a bidirectional TTS session and write the audio to a file.

The output is raw PCM16LE @ 16 kHz mono.

Example request file (speak.yaml):
  app_id: YOUR_APP_ID
  access_key: YOUR_ACCESS_KEY
  resource_id: seed-tts-1.0
  speaker: zh_female_meilinvyou_moon_bigtts
  texts:
    - 你好，
    - 这是一段测试语音。

Example:
  volctts speak -f speak.yaml -o output.pcm`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if speakInput == "" {
			return fmt.Errorf("request file is required, use -f flag")
		}
		if speakOutput == "" {
			return fmt.Errorf("output file is required, use -o flag")
		}

		req, err := loadSpeakRequest(speakInput)
		if err != nil {
			return err
		}

		out, err := os.Create(speakOutput)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer out.Close()

		done := make(chan error, 1)
		finish := func(err error) {
			select {
			case done <- err:
			default:
			}
		}

		var total int
		var client *volctts.Client
		client = volctts.NewClient(req.AppID, req.AccessKey, req.ResourceID,
			func(ev *volctts.Event) {
				switch ev.Type {
				case volctts.EventOpen:
					fmt.Fprintf(os.Stderr, "connected (connect_id=%s)\n", ev.ConnectID)
				case volctts.EventSentence:
					fmt.Fprintf(os.Stderr, "sentence: %s\n", ev.Text)
				case volctts.EventAudio:
					n, err := out.Write(ev.Audio)
					if err != nil {
						finish(err)
						client.Close()
						return
					}
					total += n
				case volctts.EventSessionFinished:
					client.Close()
				case volctts.EventError:
					finish(ev.Err)
				case volctts.EventClose:
					finish(nil)
				}
			},
			volctts.WithEndpoint(speakEndpoint))

		client.Run()

		sessionID := req.SessionID
		if sessionID == "" {
			sessionID = uuid.New().String()
		}
		for _, text := range req.Texts {
			client.Request(volctts.Request{
				SessionID: sessionID,
				Text:      text,
				Speaker:   req.Speaker,
			})
		}
		client.Request(volctts.Request{}) // end the session

		if err := <-done; err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "wrote %d bytes to %s (log_id=%s)\n",
			total, speakOutput, client.LogID())
		return nil
	},
}

func loadSpeakRequest(path string) (*speakRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read request file: %w", err)
	}
	var req speakRequest
	if err := yaml.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("parse request file: %w", err)
	}
	if speakAppID != "" {
		req.AppID = speakAppID
	}
	if speakAccessKey != "" {
		req.AccessKey = speakAccessKey
	}
	if speakResourceID != "" {
		req.ResourceID = speakResourceID
	}
	if req.AppID == "" || req.AccessKey == "" || req.ResourceID == "" {
		return nil, fmt.Errorf("app_id, access_key and resource_id are required")
	}
	if req.Speaker == "" {
		return nil, fmt.Errorf("speaker is required")
	}
	if len(req.Texts) == 0 {
		return nil, fmt.Errorf("at least one text fragment is required")
	}
	return &req, nil
}

func init() {
	speakCmd.Flags().StringVarP(&speakInput, "file", "f", "", "request file (YAML)")
	speakCmd.Flags().StringVarP(&speakOutput, "output", "o", "", "output PCM file")
	speakCmd.Flags().StringVar(&speakEndpoint, "endpoint", volctts.DefaultEndpoint, "WebSocket endpoint")
	speakCmd.Flags().StringVar(&speakAppID, "app-id", "", "override app_id from request file")
	speakCmd.Flags().StringVar(&speakAccessKey, "access-key", "", "override access_key from request file")
	speakCmd.Flags().StringVar(&speakResourceID, "resource-id", "", "override resource_id from request file")
}
