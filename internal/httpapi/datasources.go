package httpapi

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/northbound-policy/ingest/internal/model"
)

type dataSourceRequest struct {
	Name            string              `json:"name"`
	Dialect         string              `json:"dialect"`
	Host            string              `json:"host"`
	Port            int                 `json:"port"`
	DBName          string              `json:"db_name"`
	Username        string              `json:"username"`
	Password        string              `json:"password"`
	Storage         string              `json:"storage"`
	ObjectStore     *objectStoreRequest `json:"object_store_cfg"`
	Table           string              `json:"table"`
	FileColumn      string              `json:"file_column"`
	FilenameColumn  string              `json:"filename_column"`
	MetadataColumns []string            `json:"metadata_columns"`
	PathPrefix      string              `json:"path_prefix"`
}

type objectStoreRequest struct {
	Endpoint  string `json:"endpoint"`
	Bucket    string `json:"bucket"`
	AccessKey string `json:"access_key"`
	SecretKey string `json:"secret_key"`
	UseSSL    bool   `json:"use_ssl"`
}

func (h *handlers) createDataSource(c *fiber.Ctx) error {
	var req dataSourceRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "malformed request body")
	}
	if req.Name == "" || req.Table == "" || req.FileColumn == "" || req.FilenameColumn == "" {
		return badRequest(c, "name, table, file_column, and filename_column are required")
	}

	encrypted, err := h.d.External.EncryptPassword(req.Password)
	if err != nil {
		return writeError(c, err)
	}

	src := model.ExternalDataSource{
		Name: req.Name, Dialect: req.Dialect, Host: req.Host, Port: req.Port,
		DBName: req.DBName, Username: req.Username, PasswordEncrypted: encrypted,
		Storage: model.ExternalStorageMode(req.Storage), Table: req.Table,
		FileColumn: req.FileColumn, FilenameColumn: req.FilenameColumn,
		MetadataColumns: req.MetadataColumns, PathPrefix: req.PathPrefix,
	}
	if req.ObjectStore != nil {
		src.ObjectStoreCfg = &model.ExternalObjectStoreConfig{
			Endpoint: req.ObjectStore.Endpoint, Bucket: req.ObjectStore.Bucket,
			AccessKey: req.ObjectStore.AccessKey, SecretKey: req.ObjectStore.SecretKey,
			UseSSL: req.ObjectStore.UseSSL,
		}
	}

	created, err := h.d.Store.CreateExternalDataSource(c.Context(), src)
	if err != nil {
		return writeError(c, err)
	}
	created.PasswordEncrypted = nil
	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *handlers) syncDataSource(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "0"))
	log, err := h.d.External.Sync(c.Context(), c.Params("id"), limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(log)
}
