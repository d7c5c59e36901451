// Command chat is a terminal client for a running Loreweaver server.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

func main() {
	server := flag.String("server", "http://localhost:8080", "Loreweaver server URL")
	sessionID := flag.String("session", "", "Resume an existing session ID")
	flag.Parse()

	fmt.Println("Loreweaver CLI")
	fmt.Printf("Server: %s\n", *server)
	fmt.Println("Type 'exit' or 'quit' to leave. Commands: /sessions, /history")
	fmt.Println("---")

	current := *sessionID
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			fmt.Println("Bye!")
			return
		}
		if input == "/sessions" {
			fetchSessions(*server)
			continue
		}
		if input == "/history" {
			fetchHistory(*server, current)
			continue
		}

		current = sendMessage(*server, current, input)
	}
}

func fetchSessions(server string) {
	resp, err := http.Get(server + "/api/sessions")
	if err != nil {
		printError("Failed to fetch sessions: %v", err)
		return
	}
	defer resp.Body.Close()

	var body struct {
		Sessions []string `json:"sessions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		printError("Failed to parse sessions: %v", err)
		return
	}
	if len(body.Sessions) == 0 {
		fmt.Println("No active sessions.")
		return
	}
	fmt.Println("Active sessions:")
	for _, s := range body.Sessions {
		fmt.Printf("  %s\n", s)
	}
}

func fetchHistory(server, sessionID string) {
	if sessionID == "" {
		printError("No session yet — send a message first")
		return
	}
	resp, err := http.Get(server + "/api/sessions/" + sessionID + "/history")
	if err != nil {
		printError("Failed to fetch history: %v", err)
		return
	}
	defer resp.Body.Close()

	var body struct {
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
			Active  bool   `json:"active"`
		} `json:"messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		printError("Failed to parse history: %v", err)
		return
	}
	for _, m := range body.Messages {
		marker := " "
		if !m.Active {
			marker = "×"
		}
		fmt.Printf("%s [%s] %s\n", marker, m.Role, m.Content)
	}
}

func sendMessage(server, sessionID, content string) string {
	body, _ := json.Marshal(map[string]string{
		"session_id": sessionID,
		"message":    content,
	})

	client := &http.Client{Timeout: 180 * time.Second}
	resp, err := client.Post(server+"/api/chat", "application/json", bytes.NewReader(body))
	if err != nil {
		printError("Request failed: %v", err)
		return sessionID
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		printError("Server error (%d): %s", resp.StatusCode, string(data))
		return sessionID
	}

	var msg struct {
		SessionID string `json:"session_id"`
		Reply     string `json:"reply"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		printError("Failed to parse response: %v", err)
		return sessionID
	}

	fmt.Printf("\033[36m%s\033[0m\n", msg.Reply)
	return msg.SessionID
}

func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "\033[31m"+format+"\033[0m\n", args...)
}
