package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const (
	baseURL = "http://localhost:8080"
)

func main() {
	// Wait for server to start
	time.Sleep(2 * time.Second)

	fmt.Println("Starting Integration Test...")

	runID := fmt.Sprintf("%d", time.Now().Unix())
	personaID := "persona-" + runID
	conversationID := "conv-" + runID

	// 1. Create Persona
	fmt.Println("1. Creating Persona...")
	personaPayload := map[string]interface{}{
		"uuid": personaID,
		"name": "Ada",
		"instructions": map[string]string{
			"public":  "You are Ada, a friendly assistant. Keep answers short.",
			"friends": "You are Ada. You may share personal anecdotes.",
		},
	}
	if !sendRequest("POST", "/personas", personaPayload) {
		fmt.Println("FAILED: Create persona")
		os.Exit(1)
	}
	fmt.Println("PASSED: Create persona")

	// 2. Ingest a priority document
	fmt.Println("2. Ingesting Document...")
	docPayload := map[string]interface{}{
		"subject_id": personaID,
		"title":      "recent updates",
		"text":       "Ada moved to Berlin last week and started learning the cello.",
		"layer":      "public",
		"priority":   true,
	}
	if !sendRequest("POST", "/documents", docPayload) {
		fmt.Println("FAILED: Ingest document")
		os.Exit(1)
	}
	fmt.Println("PASSED: Ingest document")

	// 3. Run a turn
	fmt.Println("3. Running Turn...")
	turnPayload := map[string]string{
		"persona_id": personaID,
		"layer":      "public",
		"query":      "What instrument are you learning?",
	}
	if !sendRequest("POST", "/conversations/"+conversationID+"/turn", turnPayload) {
		fmt.Println("FAILED: Turn")
		os.Exit(1)
	}
	fmt.Println("PASSED: Turn")

	// Give background memory extraction a moment
	time.Sleep(3 * time.Second)

	// 4. Search memories
	fmt.Println("4. Searching Memories...")
	searchPayload := map[string]interface{}{
		"subject_id": personaID,
		"layer":      "public",
		"query":      "instruments",
		"k":          5,
	}
	if !sendRequest("POST", "/memories/search", searchPayload) {
		fmt.Println("FAILED: Search memories")
		os.Exit(1)
	}
	fmt.Println("PASSED: Search memories")
}

func sendRequest(method, endpoint string, payload interface{}) bool {
	var body io.Reader
	if payload != nil {
		jsonBytes, _ := json.Marshal(payload)
		body = bytes.NewBuffer(jsonBytes)
	}

	req, err := http.NewRequest(method, baseURL+endpoint, body)
	if err != nil {
		fmt.Printf("Error creating request: %v\n", err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Printf("Error sending request: %v\n", err)
		return false
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	fmt.Printf("  %s %s -> %d: %s\n", method, endpoint, resp.StatusCode, string(respBody))

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
