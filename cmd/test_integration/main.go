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

func main() {
	baseURL := os.Getenv("LOREGRAPH_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	client := &http.Client{Timeout: 30 * time.Second}

	fmt.Println("Starting smoke test against", baseURL)
	campaignID := fmt.Sprintf("smoke-%d", time.Now().Unix())

	fmt.Println("1. Creating campaign...")
	mustSucceed(client, "POST", baseURL+"/campaigns", map[string]string{"id": campaignID, "name": "Smoke Test"}, nil)

	fmt.Println("2. Seeding two factions...")
	var entities []map[string]string
	var relationships []map[string]interface{}
	factions := map[string][]string{
		"guild":  {"guild-master", "guild-thief", "guild-fence", "guild-spy"},
		"temple": {"temple-priest", "temple-acolyte", "temple-paladin", "temple-oracle"},
	}
	for _, members := range factions {
		for i, a := range members {
			entities = append(entities, map[string]string{"id": a, "type": "character", "name": a})
			for _, b := range members[i+1:] {
				relationships = append(relationships, map[string]interface{}{
					"id": a + "--" + b, "source_entity_id": a, "target_entity_id": b, "type": "allied_with", "weight": 1.0,
				})
			}
		}
	}
	relationships = append(relationships, map[string]interface{}{
		"id": "spy--oracle", "source_entity_id": "guild-spy", "target_entity_id": "temple-oracle", "type": "informs", "weight": 0.2,
	})
	mustSucceed(client, "POST", baseURL+"/campaigns/"+campaignID+"/entities", map[string]interface{}{
		"entities": entities, "relationships": relationships,
	}, nil)

	fmt.Println("3. Detecting flat communities...")
	var flat struct {
		RunID       string `json:"run_id"`
		Communities []struct {
			ID string `json:"id"`
		} `json:"communities"`
	}
	mustSucceed(client, "POST", baseURL+"/campaigns/"+campaignID+"/communities/detect", nil, &flat)
	if len(flat.Communities) != 2 {
		fail("expected 2 communities, got %d", len(flat.Communities))
	}

	fmt.Println("4. Detecting hierarchy...")
	var multi struct {
		RunID  string `json:"run_id"`
		Levels int    `json:"levels"`
	}
	mustSucceed(client, "POST", baseURL+"/campaigns/"+campaignID+"/communities/detect-hierarchy", map[string]int{"max_levels": 3}, &multi)
	if multi.Levels < 1 {
		fail("expected at least one level, got %d", multi.Levels)
	}

	fmt.Println("5. Reading back...")
	mustSucceed(client, "GET", baseURL+"/communities/"+flat.Communities[0].ID, nil, nil)
	mustSucceed(client, "GET", baseURL+"/campaigns/"+campaignID+"/runs/"+multi.RunID+"/hierarchy", nil, nil)
	mustSucceed(client, "GET", baseURL+"/campaigns/"+campaignID+"/communities?level=0", nil, nil)

	fmt.Println("6. Cleaning up...")
	mustSucceed(client, "DELETE", baseURL+"/campaigns/"+campaignID+"/communities", nil, nil)

	fmt.Println("PASSED")
}

func mustSucceed(client *http.Client, method, url string, payload, out interface{}) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			fail("encoding request: %v", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, body)
	if err != nil {
		fail("creating request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		fail("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		fail("%s %s returned %d: %s", method, url, resp.StatusCode, string(respBody))
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			fail("decoding %s response: %v", url, err)
		}
	}
}

func fail(format string, args ...interface{}) {
	fmt.Printf("FAILED: "+format+"\n", args...)
	os.Exit(1)
}
