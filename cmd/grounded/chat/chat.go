// Package chatcmder provides the chat command for interactive
// document-grounded chat against a running Grounded server.
package chatcmder

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/groundedhq/grounded/api"
	"github.com/groundedhq/grounded/pkg/cliui"
	"github.com/groundedhq/grounded/pkg/config"
	"github.com/groundedhq/grounded/pkg/dotdir"
	"github.com/groundedhq/grounded/pkg/logger"
	"github.com/groundedhq/grounded/pkg/utils"
)

var userPrompt = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true).Render("you> ")

type chatCommander struct {
	apiTarget  string
	language   string
	files      []string
	newSession bool
	debug      bool

	httpClient *http.Client
	logger     *zap.Logger
}

const chatLongDesc string = `Start an interactive chat session against a running Grounded server.

Questions are answered from the documents uploaded into the conversation.
The session is remembered in .grounded/session.json, so re-running
"grounded chat" against the same server resumes the previous conversation.
Use --new to start a fresh conversation.

Examples:
  grounded chat --file notes.txt
  grounded chat --language Spanish
  grounded chat --new --api-target http://localhost:8081`

const chatShortDesc string = "Interactive chat against a Grounded server"

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			cfger, err := config.NewConfiger(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			cfg, err := cfger.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			if !cmd.Flags().Changed("api-target") {
				cmder.apiTarget = cfg.Client.APITarget
			}

			if !cmd.Flags().Changed("language") {
				cmder.language = cfg.Generation.Language
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run()
		},
	}

	defaults := config.NewDefaultConfig()
	cmd.Flags().StringVarP(&cmder.apiTarget, "api-target", "a", defaults.Client.APITarget, "Grounded API server URL")
	cmd.Flags().StringVar(&cmder.language, "language", "", "Reply language (empty: detect from the question)")
	cmd.Flags().StringArrayVarP(&cmder.files, "file", "f", nil, "Document to upload before chatting (repeatable)")
	cmd.Flags().BoolVar(&cmder.newSession, "new", false, "Start a new conversation instead of resuming")

	return cmd
}

func (c *chatCommander) run() error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	c.httpClient = &http.Client{
		// Generation can be slow
		Timeout: 5 * time.Minute,
	}

	dotdirManager := dotdir.NewManager()

	conversationID, resumed, err := c.resolveConversation(dotdirManager)
	if err != nil {
		return err
	}

	fmt.Println()
	if resumed {
		fmt.Printf("  %s Resuming conversation %s\n",
			cliui.SuccessMark,
			cliui.NameStyle.Render(utils.Truncate(conversationID, 16)),
		)
	} else {
		fmt.Printf("  %s New conversation %s\n",
			cliui.SuccessMark,
			cliui.NameStyle.Render(utils.Truncate(conversationID, 16)),
		)
	}

	for _, path := range c.files {
		uploaded, err := c.uploadFile(conversationID, path)
		if err != nil {
			return fmt.Errorf("uploading %s: %w", path, err)
		}
		fmt.Printf("  %s Uploaded %s %s\n",
			cliui.SuccessMark,
			cliui.NameStyle.Render(uploaded.Name),
			cliui.DimStyle.Render(fmt.Sprintf("(%d passages)", uploaded.Passages)),
		)
	}

	fmt.Printf("\n  %s\n\n", cliui.DimStyle.Render("Type your question and press Enter. /exit or Ctrl+D to quit."))

	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print(userPrompt)
		if !scanner.Scan() {
			// EOF or error
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "/exit" {
			break
		}

		resp, err := c.sendChat(conversationID, input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "  %s %v\n", cliui.FailMark, err)
			continue
		}

		c.printReply(resp)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	fmt.Println()
	return nil
}

// resolveConversation resumes the saved session when it points at the same
// server, otherwise creates a fresh conversation and saves it.
func (c *chatCommander) resolveConversation(ddm *dotdir.Manager) (string, bool, error) {
	if !c.newSession {
		session, err := ddm.LoadSessionState("")
		if err != nil {
			return "", false, fmt.Errorf("loading session state: %w", err)
		}

		if session != nil && session.APITarget == c.apiTarget {
			return session.ConversationID, true, nil
		}
	}

	conversationID, err := c.createSession()
	if err != nil {
		return "", false, err
	}

	if err := ddm.SaveSession(&dotdir.SessionState{
		ConversationID: conversationID,
		APITarget:      c.apiTarget,
	}, ""); err != nil {
		return "", false, fmt.Errorf("saving session state: %w", err)
	}

	return conversationID, false, nil
}

func (c *chatCommander) createSession() (string, error) {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, c.apiTarget+"/session", nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("creating conversation: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}

	var session api.SessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return "", fmt.Errorf("decoding session response: %w", err)
	}

	return session.ConversationID, nil
}

func (c *chatCommander) uploadFile(conversationID, path string) (*api.UploadResponse, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if err := writer.WriteField("conversation_id", conversationID); err != nil {
		return nil, fmt.Errorf("writing form field: %w", err)
	}

	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("creating form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("writing file contents: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finalizing form: %w", err)
	}

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, c.apiTarget+"/upload", &buf)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}

	var uploaded api.UploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&uploaded); err != nil {
		return nil, fmt.Errorf("decoding upload response: %w", err)
	}

	return &uploaded, nil
}

func (c *chatCommander) sendChat(conversationID, message string) (*api.ChatResponse, error) {
	body, err := json.Marshal(api.ChatRequest{
		ConversationID: conversationID,
		Message:        message,
		Language:       c.language,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	c.logger.Debug("sending chat request",
		zap.String("api_target", c.apiTarget),
		zap.String("conversation_id", conversationID),
	)

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, c.apiTarget+"/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var chat api.ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return nil, fmt.Errorf("decoding chat response: %w", err)
	}

	return &chat, nil
}

func (c *chatCommander) printReply(resp *api.ChatResponse) {
	rendered, err := cliui.RenderMarkdown(resp.Reply)
	if err != nil {
		rendered = resp.Reply + "\n"
	}
	fmt.Print(rendered)

	if len(resp.Sources) > 0 {
		names := make([]string, len(resp.Sources))
		for i, s := range resp.Sources {
			names[i] = s.Document
		}
		fmt.Printf("  %s\n", cliui.DimStyle.Render("sources: "+strings.Join(names, ", ")))
	}
	fmt.Println()
}
