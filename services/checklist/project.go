package checklist

import (
	"errors"
	"strings"
	"time"

	"hellocity/models"
)

func mapImportance(value string) string {
	switch strings.ToLower(value) {
	case "urgent", "high":
		return "high"
	case "low":
		return "low"
	default:
		return "medium"
	}
}

func mapStayType(value string) string {
	switch strings.ToLower(value) {
	case "short-term", "shortterm":
		return "shortTerm"
	case "medium-term", "mediumterm":
		return "mediumTerm"
	default:
		return "longTerm"
	}
}

// BuildFrontendChecklist projects a generated checklist into the externally
// visible payload. The stable identifier becomes checklistId, unchanged from
// the pending banner, and each item's due date is computed relative to now.
func BuildFrontendChecklist(sessionID string, gc *models.GeneratedChecklist, stableID string, now time.Time) (*models.FrontendChecklist, error) {
	if gc == nil {
		return nil, errors.New("no generated checklist to project")
	}
	now = now.UTC()

	items := make([]models.FrontendChecklistItem, 0, len(gc.Items))
	for idx, item := range gc.Items {
		order := item.Order
		if order == 0 {
			order = idx
		}
		category := strings.TrimSpace(item.Category)
		if category == "" {
			category = "General"
		}
		dueDate := now.AddDate(0, 0, int(item.DueDays)).Format("2006-01-02")
		items = append(items, models.FrontendChecklistItem{
			Title:       strings.TrimSpace(item.Title),
			Description: strings.TrimSpace(item.Description),
			Importance:  mapImportance(item.Importance),
			DueDate:     dueDate,
			Category:    category,
			Order:       order,
			IsComplete:  false,
		})
	}

	cityCode := gc.CityInfo.CityCode
	if cityCode == "" {
		cityCode = "unknown"
	}

	return &models.FrontendChecklist{
		ChecklistID:    stableID,
		ConversationID: sessionID,
		Title:          strings.TrimSpace(gc.Title),
		Summary:        strings.TrimSpace(gc.Summary),
		Destination:    strings.TrimSpace(gc.Destination),
		Duration:       strings.TrimSpace(gc.Duration),
		StayType:       mapStayType(gc.StayType),
		CityCode:       cityCode,
		Status:         "completed",
		Items:          items,
		CreatedAt:      now.Format(time.RFC3339),
		UpdatedAt:      now.Format(time.RFC3339),
	}, nil
}

// BuildPendingBanner creates the placeholder card shown while generation
// runs. It carries the same stable identifier the final payload will use.
func BuildPendingBanner(sessionID, taskID, stableID string, now time.Time) models.FrontendChecklist {
	nowISO := now.UTC().Format(time.RFC3339)
	return models.FrontendChecklist{
		ChecklistID:    stableID,
		ConversationID: sessionID,
		Title:          "Generating your checklist",
		Summary:        "Hang tight while we prepare your personalized checklist.",
		Destination:    "TBD",
		Duration:       "TBD",
		StayType:       "mediumTerm",
		CityCode:       "default",
		Status:         "generating",
		Items:          []models.FrontendChecklistItem{},
		CreatedAt:      nowISO,
		UpdatedAt:      nowISO,
		TaskID:         taskID,
		StableID:       stableID,
	}
}
