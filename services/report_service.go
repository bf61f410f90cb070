// services/report_service.go
package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"piece-core-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ReportPerDay caps reports per user per calendar day.
const ReportPerDay = 5

// ReportService records moderation reports and manages user blocks.
type ReportService struct {
	DB *gorm.DB
}

func NewReportService(db *gorm.DB) *ReportService {
	return &ReportService{DB: db}
}

func validReportReason(r models.ReportReason) bool {
	switch r {
	case models.ReportReasonSpam, models.ReportReasonInappropriate,
		models.ReportReasonHarassment, models.ReportReasonFake, models.ReportReasonOther:
		return true
	}
	return false
}

// CreateReport stores a report after validating reason and daily quota.
func (s *ReportService) CreateReport(actor, targetType, targetID string, reason models.ReportReason, description string) (*models.Report, error) {
	switch targetType {
	case "user", "card", "message":
	default:
		return nil, fmt.Errorf("unknown target type %q: %w", targetType, ErrInvalidInput)
	}
	if !validReportReason(reason) {
		return nil, fmt.Errorf("unknown reason %q: %w", reason, ErrInvalidInput)
	}

	dayStart := time.Now().UTC().Truncate(24 * time.Hour)
	var todays int64
	if err := s.DB.Model(&models.Report{}).
		Where("actor = ? AND created_at >= ?", actor, dayStart).
		Count(&todays).Error; err != nil {
		return nil, err
	}
	if todays >= ReportPerDay {
		return nil, fmt.Errorf("%d reports today: %w", todays, ErrRateLimited)
	}

	report := &models.Report{
		ID:          uuid.NewString(),
		Actor:       actor,
		TargetType:  targetType,
		TargetID:    targetID,
		Reason:      reason,
		Description: description,
	}
	if err := s.DB.Create(report).Error; err != nil {
		return nil, err
	}
	return report, nil
}

// BlockUser hides target from actor. Idempotent.
func (s *ReportService) BlockUser(actor, targetUser string) (*models.Block, error) {
	if actor == targetUser {
		return nil, fmt.Errorf("cannot block yourself: %w", ErrInvalidInput)
	}
	var block models.Block
	err := s.DB.Where("actor = ? AND target_user = ?", actor, targetUser).First(&block).Error
	if err == nil {
		return &block, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	block = models.Block{
		ID:         uuid.NewString(),
		Actor:      actor,
		TargetUser: targetUser,
	}
	if err := s.DB.Create(&block).Error; err != nil {
		return nil, err
	}
	return &block, nil
}

// UnblockUser removes the block row if present.
func (s *ReportService) UnblockUser(actor, targetUser string) error {
	return s.DB.Where("actor = ? AND target_user = ?", actor, targetUser).
		Delete(&models.Block{}).Error
}

// ListBlocks returns who the actor has blocked.
func (s *ReportService) ListBlocks(actor string) ([]models.Block, error) {
	var blocks []models.Block
	err := s.DB.Where("actor = ?", actor).Order("created_at DESC").Find(&blocks).Error
	return blocks, err
}

// --- HTTP handlers ---

// CreateReportEndpoint handles POST /reports.
func (s *ReportService) CreateReportEndpoint(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var req struct {
		TargetType  string              `json:"target_type"`
		TargetID    string              `json:"target_id"`
		Reason      models.ReportReason `json:"reason"`
		Description string              `json:"description"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if _, err := uuid.Parse(req.TargetID); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid target ID"})
	}

	report, err := s.CreateReport(userID, req.TargetType, req.TargetID, req.Reason, req.Description)
	if err != nil {
		log.Printf("CreateReport failed for %s: %v", userID, err)
		return FailJSON(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(report)
}

// BlockEndpoint handles POST /blocks.
func (s *ReportService) BlockEndpoint(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var req struct {
		TargetUser string `json:"target_user"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if _, err := uuid.Parse(req.TargetUser); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid target user"})
	}

	block, err := s.BlockUser(userID, req.TargetUser)
	if err != nil {
		return FailJSON(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(block)
}

// UnblockEndpoint handles DELETE /blocks/:target.
func (s *ReportService) UnblockEndpoint(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	target := c.Params("target")
	if _, err := uuid.Parse(target); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid target user"})
	}
	if err := s.UnblockUser(userID, target); err != nil {
		log.Printf("Unblock failed actor=%s target=%s: %v", userID, target, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to unblock"})
	}
	return c.JSON(fiber.Map{"message": "Unblocked"})
}

// ListBlocksEndpoint handles GET /blocks.
func (s *ReportService) ListBlocksEndpoint(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	blocks, err := s.ListBlocks(userID)
	if err != nil {
		log.Printf("DB Error fetching blocks for %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch blocks"})
	}
	return c.JSON(blocks)
}
