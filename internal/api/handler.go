package api

import (
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/adityavishwakarma159/CampusConnect/internal/apperr"
	"github.com/adityavishwakarma159/CampusConnect/internal/models"
	"github.com/adityavishwakarma159/CampusConnect/internal/service"
)

type handler struct {
	svc      *service.ChatService
	validate *validator.Validate
}

func newHandler(svc *service.ChatService) *handler {
	return &handler{svc: svc, validate: validator.New()}
}

type sendMessageReq struct {
	ReceiverID    int64  `json:"receiver_id" validate:"required"`
	Body          string `json:"body" validate:"required"`
	AttachmentURL string `json:"attachment_url" validate:"omitempty,url"`
}

type sendGroupMessageReq struct {
	ChatType      models.ChatType `json:"chat_type" validate:"required"`
	Body          string          `json:"body" validate:"required"`
	AttachmentURL string          `json:"attachment_url" validate:"omitempty,url"`
}

func (h *handler) sendDirect(c *fiber.Ctx) error {
	var req sendMessageReq
	if err := c.BodyParser(&req); err != nil {
		return apperr.Validationf("invalid payload")
	}
	if err := h.validate.Struct(req); err != nil {
		return apperr.Validationf("%v", err)
	}
	msg, err := h.svc.SendDirect(c.Context(), currentUser(c).ID, req.ReceiverID, req.Body, req.AttachmentURL)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(msg)
}

func (h *handler) sendGroup(c *fiber.Ctx) error {
	deptID, err := paramInt64(c, "departmentId")
	if err != nil {
		return err
	}
	var req sendGroupMessageReq
	if err := c.BodyParser(&req); err != nil {
		return apperr.Validationf("invalid payload")
	}
	if err := h.validate.Struct(req); err != nil {
		return apperr.Validationf("%v", err)
	}
	msg, err := h.svc.SendGroup(c.Context(), currentUser(c).ID, deptID, req.ChatType, req.Body, req.AttachmentURL)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(msg)
}

func (h *handler) history(c *fiber.Ctx) error {
	otherID, err := paramInt64(c, "otherUserId")
	if err != nil {
		return err
	}
	msgs, err := h.svc.History(c.Context(), currentUser(c).ID, otherID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"messages": msgs})
}

func (h *handler) groupHistory(c *fiber.Ctx) error {
	deptID, err := paramInt64(c, "departmentId")
	if err != nil {
		return err
	}
	chatType := models.ChatType(c.Query("chatType", string(models.ChatTypeDepartmentGroup)))
	msgs, err := h.svc.GroupHistory(c.Context(), currentUser(c).ID, deptID, chatType)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"messages": msgs})
}

func (h *handler) conversations(c *fiber.Ctx) error {
	convs, err := h.svc.Conversations(c.Context(), currentUser(c).ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"conversations": convs})
}

func (h *handler) markRead(c *fiber.Ctx) error {
	otherID, err := paramInt64(c, "otherUserId")
	if err != nil {
		return err
	}
	if err := h.svc.MarkRead(c.Context(), currentUser(c).ID, otherID); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

func (h *handler) permissions(c *fiber.Ctx) error {
	deptID, err := paramInt64(c, "departmentId")
	if err != nil {
		return err
	}
	chatType := models.ChatType(c.Query("chatType", string(models.ChatTypeDepartmentGroup)))
	perms, err := h.svc.Permissions(c.Context(), currentUser(c).ID, deptID, chatType)
	if err != nil {
		return err
	}
	return c.JSON(perms)
}

func (h *handler) chatUsers(c *fiber.Ctx) error {
	users, err := h.svc.ChatUsers(c.Context(), currentUser(c).ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"users": users})
}

func (h *handler) groupParticipants(c *fiber.Ctx) error {
	deptID, err := paramInt64(c, "departmentId")
	if err != nil {
		return err
	}
	users, err := h.svc.GroupParticipants(c.Context(), currentUser(c).ID, deptID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"users": users})
}

func paramInt64(c *fiber.Ctx, name string) (int64, error) {
	v, err := strconv.ParseInt(c.Params(name), 10, 64)
	if err != nil {
		return 0, apperr.Validationf("invalid %s", name)
	}
	return v, nil
}
