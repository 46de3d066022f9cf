// package formatter renders matches, histories and profiles for the CLI and exports them
// to files (CSV, Markdown, JSON, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/chord/internal/matching"
	"github.com/desertthunder/chord/internal/models"
	"github.com/desertthunder/chord/internal/tasks"
)

// MatchCard renders a match as seen by one party. A nil palette renders plain text.
func MatchCard(view *matching.MatchView, p *Palette) string {
	var b strings.Builder

	name := view.OtherUser.ID
	if view.OtherUser.DisplayName != "" {
		name = view.OtherUser.DisplayName
	}
	fmt.Fprintf(&b, "%s\n", p.Title(fmt.Sprintf("Match for %s: %s", view.Date, name)))
	fmt.Fprintf(&b, "Score:      %s\n", percent(view.MatchScore))
	fmt.Fprintf(&b, "Similarity: %s\n", percent(view.MusicSimilarity))
	fmt.Fprintf(&b, "Distance:   %.1f km\n", view.DistanceKm)
	fmt.Fprintf(&b, "State:      %s\n", stateLabel(view, p))

	if len(view.SharedArtists) > 0 {
		names := make([]string, len(view.SharedArtists))
		for i, a := range view.SharedArtists {
			names[i] = a.Name
		}
		fmt.Fprintf(&b, "Artists:    %s\n", strings.Join(names, ", "))
	}
	if len(view.SharedGenres) > 0 {
		names := make([]string, len(view.SharedGenres))
		for i, g := range view.SharedGenres {
			names[i] = g.Name
		}
		fmt.Fprintf(&b, "Genres:     %s\n", strings.Join(names, ", "))
	}

	if view.RevealAwaitingYou {
		fmt.Fprintf(&b, "%s\n", p.Help("Run `chord reveal accept "+view.ID+"` to reveal identities."))
	}
	return b.String()
}

func stateLabel(view *matching.MatchView, p *Palette) string {
	switch {
	case view.State == models.Blocked.String():
		return p.Err("blocked")
	case view.IdentitiesRevealed:
		return p.OK("revealed")
	case view.RevealAwaitingYou:
		return p.Warn("reveal requested by your match")
	case view.RevealRequested:
		return p.Warn("reveal requested")
	default:
		return "hidden"
	}
}

func percent(v float64) string {
	return strconv.FormatFloat(v*100, 'f', 0, 64) + "%"
}

// HistoryToCSV converts match views to CSV with columns: ID, Date, State, Score, Similarity, DistanceKm, OtherUser
func HistoryToCSV(views []matching.MatchView) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Date", "State", "Score", "Similarity", "DistanceKm", "OtherUser"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, v := range views {
		record := []string{
			v.ID,
			v.Date,
			v.State,
			strconv.FormatFloat(v.MatchScore, 'f', 4, 64),
			strconv.FormatFloat(v.MusicSimilarity, 'f', 4, 64),
			strconv.FormatFloat(v.DistanceKm, 'f', 2, 64),
			v.OtherUser.ID,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// HistoryToText converts match views to one line per match, newest first as given.
func HistoryToText(views []matching.MatchView) []byte {
	var buf bytes.Buffer
	if len(views) == 0 {
		buf.WriteString("No matches yet.\n")
		return buf.Bytes()
	}

	for i, v := range views {
		name := v.OtherUser.ID
		if v.OtherUser.DisplayName != "" {
			name = v.OtherUser.DisplayName
		}
		fmt.Fprintf(&buf, "%d. %s  %-24s %s  %s\n", i+1, v.Date, name, percent(v.MatchScore), strings.ToLower(v.State))
	}
	return buf.Bytes()
}

// ProfileToMarkdown converts a user's taste profile to Markdown with an optional photo
func ProfileToMarkdown(user *models.User, imageFilename string) ([]byte, error) {
	if user.Profile == nil {
		return nil, fmt.Errorf("user %s has no taste profile", user.ID())
	}
	profile := user.Profile

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# %s\n\n", user.DisplayName)

	if imageFilename != "" {
		fmt.Fprintf(&buf, "![Photo](%s)\n\n", imageFilename)
	}
	if user.Bio != "" {
		fmt.Fprintf(&buf, "> %s\n\n", user.Bio)
	}
	fmt.Fprintf(&buf, "**Last sync**: %s\n\n", profile.LastSync.UTC().Format(time.RFC3339))

	buf.WriteString("## Top Genres\n\n")
	for i, g := range profile.TopGenres {
		fmt.Fprintf(&buf, "%d. %s (%s)\n", i+1, g.Name, percent(g.Weight))
	}

	buf.WriteString("\n## Top Artists\n\n")
	for i, a := range profile.TopArtists {
		genres := ""
		if len(a.Genres) > 0 {
			genres = fmt.Sprintf(" [%s]", strings.Join(a.Genres, ", "))
		}
		fmt.Fprintf(&buf, "%d. %s%s\n", i+1, a.Name, genres)
	}

	buf.WriteString("\n## Top Tracks\n\n")
	for i, t := range profile.TopTracks {
		fmt.Fprintf(&buf, "%d. %s - %s\n", i+1, t.Artist, t.Name)
	}

	return buf.Bytes(), nil
}

// MessagesToText renders a chat transcript, marking the caller's own messages.
func MessagesToText(messages []models.Message, callerID string) []byte {
	var buf bytes.Buffer
	for _, m := range messages {
		who := "them"
		if m.SenderID == callerID {
			who = "you"
		}
		fmt.Fprintf(&buf, "[%s] %s: %s\n", m.CreatedAt.UTC().Format("15:04"), who, m.Content)
	}
	return buf.Bytes()
}

// RunSummary renders the outcome of a matching run.
func RunSummary(result *tasks.RunResult, p *Palette) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", p.Title("Matching run for "+result.Date))
	fmt.Fprintf(&b, "Users processed: %d\n", result.UsersProcessed)
	fmt.Fprintf(&b, "Matches created: %s\n", p.OK(strconv.Itoa(result.MatchesCreated)))
	fmt.Fprintf(&b, "Already matched: %d\n", result.UsersSkipped)
	fmt.Fprintf(&b, "No candidates:   %d\n", result.NoCandidates)
	fmt.Fprintf(&b, "Lost races:      %d\n", result.Conflicts)
	if result.Failures > 0 {
		fmt.Fprintf(&b, "Failures:        %s\n", p.Err(strconv.Itoa(result.Failures)))
	} else {
		fmt.Fprintf(&b, "Failures:        0\n")
	}
	fmt.Fprintf(&b, "Duration:        %s\n", result.Duration.Round(time.Millisecond))
	return b.String()
}

// DownloadImage downloads an image from the given URL and returns the raw bytes
func DownloadImage(url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("empty URL provided")
	}

	client := &http.Client{
		Timeout: 30 * time.Second,
	}

	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	imageData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}

	return imageData, nil
}

// ToProfileJSON generates an indented JSON representation of a taste profile
func ToProfileJSON(profile *models.TasteProfile) ([]byte, error) {
	return json.MarshalIndent(profile, "", "  ")
}

// WriteHistoryCSV writes match views to path, defaulting to {userID}_history.csv.
func WriteHistoryCSV(views []matching.MatchView, userID, path string) (string, error) {
	if path == "" {
		path = userID + "_history.csv"
	}

	data, err := HistoryToCSV(views)
	if err != nil {
		return "", fmt.Errorf("failed to generate CSV: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write CSV file: %w", err)
	}
	return path, nil
}

// ProfileExportResult contains information about files created by WriteProfileExport
type ProfileExportResult struct {
	Directory string
	Files     []string
	Photo     string
}

// WriteProfileExport exports a user's taste profile in a dedicated directory.
//
// Directory name defaults to the user ID. When the user has a photo URL and
// fetchPhoto is set, the photo is downloaded next to the Markdown file.
// Creates {dir}/README.md, {dir}/profile.json and optionally {dir}/photo.jpg
func WriteProfileExport(user *models.User, outputDir string, fetchPhoto bool) (*ProfileExportResult, error) {
	if user.Profile == nil {
		return nil, fmt.Errorf("user %s has no taste profile", user.ID())
	}
	if outputDir == "" {
		if user.ID() == "" {
			return nil, fmt.Errorf("user %q has no ID; pass an output directory", user.DisplayName)
		}
		outputDir = user.ID()
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	result := &ProfileExportResult{
		Directory: outputDir,
		Files:     []string{},
	}

	var photoFilename string
	if fetchPhoto && user.PhotoURL != "" {
		imageData, err := DownloadImage(user.PhotoURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to download photo: %v\n", err)
		} else {
			photoFilename = "photo.jpg"
			photoPath := filepath.Join(outputDir, photoFilename)
			if err := os.WriteFile(photoPath, imageData, 0644); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to save photo: %v\n", err)
				photoFilename = ""
			} else {
				result.Photo = photoPath
				result.Files = append(result.Files, photoPath)
			}
		}
	}

	mdData, err := ProfileToMarkdown(user, photoFilename)
	if err != nil {
		return nil, fmt.Errorf("failed to generate Markdown: %w", err)
	}
	mdFile := filepath.Join(outputDir, "README.md")
	if err := os.WriteFile(mdFile, mdData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write Markdown file: %w", err)
	}
	result.Files = append(result.Files, mdFile)

	jsonData, err := ToProfileJSON(user.Profile)
	if err != nil {
		return nil, fmt.Errorf("failed to generate profile JSON: %w", err)
	}
	jsonFile := filepath.Join(outputDir, "profile.json")
	if err := os.WriteFile(jsonFile, jsonData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write profile file: %w", err)
	}
	result.Files = append(result.Files, jsonFile)

	return result, nil
}
