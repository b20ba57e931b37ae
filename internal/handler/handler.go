package handler

import (
	"fmt"
	"strconv"
	"time"

	"gomonate/internal/logging"
	"gomonate/internal/repository"
	"gomonate/internal/service"
	"gomonate/pkg/response"

	"github.com/gin-gonic/gin"
)

const maxImportSize = 10 << 20

// Handler holds every service the HTTP API calls into.
type Handler struct {
	log               logging.Logger
	redemptionService *service.RedemptionService
	employeeService   *service.EmployeeService
	codeService       *service.CodeService
	userService       *service.UserService
	reportService     *service.ReportService
}

func NewHandler(
	redemptionService *service.RedemptionService,
	employeeService *service.EmployeeService,
	codeService *service.CodeService,
	userService *service.UserService,
	reportService *service.ReportService,
	log logging.Logger,
) *Handler {
	return &Handler{
		log:               log,
		redemptionService: redemptionService,
		employeeService:   employeeService,
		codeService:       codeService,
		userService:       userService,
		reportService:     reportService,
	}
}

func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	return page, pageSize
}

// ============================================================
// auth
// ============================================================

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login POST /api/v1/auth/login
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	res, err := h.userService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, res)
}

// Me GET /api/v1/auth/me
func (h *Handler) Me(c *gin.Context) {
	u, err := h.userService.Get(c.Request.Context(), c.GetString(ctxUserID))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, u)
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

// ChangePassword POST /api/v1/auth/password
func (h *Handler) ChangePassword(c *gin.Context) {
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	if err := h.userService.ChangePassword(c.Request.Context(), c.GetString(ctxUserID), req.OldPassword, req.NewPassword); err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, gin.H{"changed": true})
}

// ============================================================
// employee self service
// ============================================================

type RegisterRequest struct {
	Code     string `json:"code" binding:"required"`
	DeviceID string `json:"device_id"`
}

// Register POST /api/v1/register
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	res, err := h.codeService.Register(c.Request.Context(), req.Code, req.DeviceID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, gin.H{
		"employee_id":        res.Employee.EmployeeID,
		"first_name":         res.Employee.FirstName,
		"last_name":          res.Employee.LastName,
		"token_balance":      res.Employee.TokenBalance,
		"code_id":            res.Code.CodeID,
		"registered_at":      res.Code.RegisteredAt,
		"already_registered": res.AlreadyRegistered,
	})
}

// Wallet GET /api/v1/wallet?code=xxx
func (h *Handler) Wallet(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		response.ParamError(c, "code is required")
		return
	}

	w, err := h.employeeService.Wallet(c.Request.Context(), code)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, w)
}

// ============================================================
// employees and codes
// ============================================================

// ListEmployees GET /api/v1/employees?search=&page=&page_size=
func (h *Handler) ListEmployees(c *gin.Context) {
	page, pageSize := pageParams(c)

	list, total, err := h.employeeService.List(c.Request.Context(), c.Query("search"), page, pageSize)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, gin.H{
		"list":  list,
		"total": total,
		"page":  page,
	})
}

// CreateEmployee POST /api/v1/employees
func (h *Handler) CreateEmployee(c *gin.Context) {
	var req service.CreateEmployeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	e, err := h.employeeService.Create(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Created(c, e)
}

// ImportEmployees POST /api/v1/employees/import (multipart field "file")
func (h *Handler) ImportEmployees(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		response.ParamError(c, "file is required")
		return
	}
	if fh.Size > maxImportSize {
		response.ParamError(c, fmt.Sprintf("file exceeds %d bytes", maxImportSize))
		return
	}

	f, err := fh.Open()
	if err != nil {
		response.ParamError(c, "cannot read file")
		return
	}
	defer f.Close()

	res, err := h.employeeService.ImportCSV(c.Request.Context(), f)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, res)
}

// GetEmployee GET /api/v1/employees/:id
func (h *Handler) GetEmployee(c *gin.Context) {
	d, err := h.employeeService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, d)
}

// AssignCode POST /api/v1/employees/:id/codes
func (h *Handler) AssignCode(c *gin.Context) {
	code, err := h.codeService.Assign(c.Request.Context(), c.Param("id"), c.GetString(ctxUserID))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Created(c, gin.H{
		"code":             code,
		"registration_url": h.codeService.RegistrationURL(code.CodeID),
	})
}

// QRCode GET /api/v1/codes/:code_id/qr.png?size=
func (h *Handler) QRCode(c *gin.Context) {
	size, _ := strconv.Atoi(c.Query("size"))

	png, err := h.codeService.QRCode(c.Request.Context(), c.Param("code_id"), size)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Data(200, "image/png", png)
}

// ============================================================
// redemption
// ============================================================

type RedeemRequest struct {
	Code string `json:"code" binding:"required"`
}

// Redeem POST /api/v1/redeem
// The authenticated user is recorded as the scanner.
func (h *Handler) Redeem(c *gin.Context) {
	var req RedeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	res, err := h.redemptionService.Redeem(c.Request.Context(), req.Code, c.GetString(ctxUserID))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, res)
}

// ============================================================
// admin
// ============================================================

// ListUsers GET /api/v1/admin/users
func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.userService.List(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, users)
}

// CreateUser POST /api/v1/admin/users
func (h *Handler) CreateUser(c *gin.Context) {
	var req service.CreateStaffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	u, err := h.userService.CreateStaff(c.Request.Context(), &req, c.GetString(ctxUserID))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Created(c, u)
}

type SetUserStatusRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// SetUserStatus PUT /api/v1/admin/users/:id/status
func (h *Handler) SetUserStatus(c *gin.Context) {
	var req SetUserStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}
	id := c.Param("id")
	if id == c.GetString(ctxUserID) && !*req.Active {
		response.ParamError(c, "cannot deactivate yourself")
		return
	}

	if err := h.userService.SetActive(c.Request.Context(), id, *req.Active); err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, gin.H{"id": id, "active": *req.Active})
}

// Dashboard GET /api/v1/admin/dashboard
func (h *Handler) Dashboard(c *gin.Context) {
	stats, err := h.reportService.Dashboard(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, stats)
}

// Transactions GET /api/v1/admin/transactions?employee_id=&scanner_id=&from=&to=&page=&page_size=
// from and to are RFC 3339 timestamps.
func (h *Handler) Transactions(c *gin.Context) {
	filter := repository.TransactionFilter{
		EmployeeID: c.Query("employee_id"),
		ScannerID:  c.Query("scanner_id"),
	}
	var err error
	if filter.From, err = parseTime(c.Query("from")); err != nil {
		response.ParamError(c, "from must be an RFC 3339 timestamp")
		return
	}
	if filter.To, err = parseTime(c.Query("to")); err != nil {
		response.ParamError(c, "to must be an RFC 3339 timestamp")
		return
	}
	page, pageSize := pageParams(c)

	list, total, err := h.reportService.Transactions(c.Request.Context(), filter, page, pageSize)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, gin.H{
		"list":  list,
		"total": total,
		"page":  page,
	})
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}

// ExportEmployees GET /api/v1/admin/reports/employees.csv
func (h *Handler) ExportEmployees(c *gin.Context) {
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="employees-%s.csv"`, time.Now().UTC().Format("20060102")))
	c.Status(200)

	if _, err := h.reportService.ExportEmployeesCSV(c.Request.Context(), c.Writer); err != nil {
		// headers are already out; the client sees a truncated file
		h.log.Error(c.Request.Context(), "employee export", "error", err)
	}
}

// ArchiveReport POST /api/v1/admin/reports/archive
func (h *Handler) ArchiveReport(c *gin.Context) {
	res, err := h.reportService.Archive(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, res)
}
