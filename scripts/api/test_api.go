// Minimal end‑to‑end integration test for the SnowVote API.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/google/uuid"
)

var (
	baseURL     = getenv("API_URL", "http://localhost:8080/v1")
	discordID   = getenv("DISCORD_ID", "101") // must exist in users
	communityID = getenv("COMMUNITY_ID", "1")
)

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func main() {
	nonce := challenge()
	token := verify(nonce)

	id := createProposal(token)
	checkList(token, id)
	checkGet(token, id)

	castVote(token, id)
	checkSummary(token, id)

	fmt.Println("✓ all endpoints passed")
}

// ----------------------------- auth

func challenge() string {
	var resp struct{ Nonce string }
	doJSON("POST", "/auth/challenge", map[string]any{
		"discordId": discordID,
	}, &resp, http.StatusOK)
	if resp.Nonce == "" {
		log.Fatal("challenge: empty nonce")
	}
	return resp.Nonce
}

func verify(nonce string) string {
	var resp struct{ Token string }
	doJSON("POST", "/auth/verify", map[string]any{
		"discordId": discordID,
		"nonce":     nonce,
	}, &resp, http.StatusOK)
	if resp.Token == "" {
		log.Fatal("verify: empty token")
	}
	return resp.Token
}

// ----------------------------- proposals

func createProposal(tok string) uint64 {
	var resp struct{ ID uint64 }
	doAuth(tok, "POST", "/communities/"+communityID+"/proposals", map[string]any{
		"title":       "integration-test " + uuid.NewString()[:8],
		"description": "created by the API smoke test",
		"format":      "workshop",
	}, &resp, http.StatusCreated)
	return resp.ID
}

func checkList(tok string, want uint64) {
	var resp struct {
		Proposals []struct{ ID uint64 }
	}
	doAuth(tok, "GET", "/communities/"+communityID+"/proposals", nil, &resp, http.StatusOK)
	for _, p := range resp.Proposals {
		if p.ID == want {
			return
		}
	}
	log.Fatal("proposals: created proposal not found")
}

func checkGet(tok string, id uint64) {
	var resp struct{ Status string }
	doAuth(tok, "GET", fmt.Sprintf("/proposals/%d", id), nil, &resp, http.StatusOK)
	if resp.Status != "in_progress" {
		log.Fatalf("proposal: want in_progress got %s", resp.Status)
	}
}

// ----------------------------- votes

func castVote(tok string, id uint64) {
	doAuth(tok, "POST", fmt.Sprintf("/proposals/%d/votes", id), map[string]any{
		"kind":  "subject",
		"value": "for",
	}, nil, http.StatusOK)
}

func checkSummary(tok string, id uint64) {
	var resp struct {
		Tally struct{ SubjectFor int }
	}
	doAuth(tok, "GET", fmt.Sprintf("/proposals/%d/votes", id), nil, &resp, http.StatusOK)
	if resp.Tally.SubjectFor == 0 {
		log.Fatal("votes: tally missing the cast vote")
	}
}

// ----------------------------- helpers

func doAuth(token, method, path string, body, out any, want int) {
	doReq(method, path, token, body, out, want)
}

func doJSON(method, path string, body, out any, want int) {
	doReq(method, path, "", body, out, want)
}

func doReq(method, path, token string, body, out any, want int) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			log.Fatalf("%s %s encode: %v", method, path, err)
		}
	}
	req, _ := http.NewRequest(method, baseURL+path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("%s %s: %v", method, path, err)
	}
	defer res.Body.Close()
	if res.StatusCode != want {
		log.Fatalf("%s %s: want %d got %d", method, path, want, res.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			log.Fatalf("%s %s decode: %v", method, path, err)
		}
	}
}
