// Package vpic: клиент публичного реестра NHTSA vPIC (без авторизации).
package vpic

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/BearBump/VinBox/internal/integrations/decoder"
	"github.com/BearBump/VinBox/internal/models"
	"github.com/pkg/errors"
)

const (
	DefaultBaseURL = "https://vpic.nhtsa.dot.gov"
	defaultTimeout = 10 * time.Second
)

type Client struct {
	baseURL string
	httpc   *http.Client
}

func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// WithTimeout меняет общий таймаут запроса.
func (c *Client) WithTimeout(d time.Duration) *Client {
	if d > 0 {
		c.httpc.Timeout = d
	}
	return c
}

func (c *Client) Name() string { return "vpic" }

type result struct {
	Variable string  `json:"Variable"`
	Value    *string `json:"Value"`
}

type respBody struct {
	Count   int      `json:"Count"`
	Message string   `json:"Message"`
	Results []result `json:"Results"`
}

func (c *Client) Decode(ctx context.Context, vin string) (models.VehicleAttributes, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return models.VehicleAttributes{}, errors.Wrap(err, "parse base url")
	}
	u.Path = u.Path + "/api/vehicles/DecodeVin/" + url.PathEscape(vin)
	q := u.Query()
	q.Set("format", "json")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return models.VehicleAttributes{}, errors.Wrap(err, "new request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return models.VehicleAttributes{}, errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return models.VehicleAttributes{}, &decoder.HTTPStatusError{Provider: c.Name(), StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}

	var rb respBody
	if err := json.NewDecoder(resp.Body).Decode(&rb); err != nil {
		return models.VehicleAttributes{}, errors.Wrap(err, "decode")
	}
	return Normalize(rb.Results), nil
}

// Имена переменных vPIC, из которых собирается плоская запись.
const (
	VarModelYear    = "Model Year"
	VarMake         = "Make"
	VarModel        = "Model"
	VarTrim         = "Trim"
	VarEngine       = "Engine Model"
	VarDisplacement = "Displacement (L)"
	VarCylinders    = "Engine Number of Cylinders"
	VarFuelType     = "Fuel Type - Primary"
	VarVehicleType  = "Vehicle Type"
	VarBodyClass    = "Body Class"
	VarDriveType    = "Drive Type"
	VarTransmission = "Transmission Style"
	VarManufacturer = "Manufacturer Name"
	VarPlantCity    = "Plant City"
	VarPlantState   = "Plant State"
)

// Normalize сворачивает пары Variable/Value в VehicleAttributes.
// Отсутствующие и пустые значения остаются nil, плейсхолдеров не подставляем.
func Normalize(results []result) models.VehicleAttributes {
	vals := make(map[string]string, len(results))
	for _, r := range results {
		if r.Value == nil {
			continue
		}
		v := strings.TrimSpace(*r.Value)
		if isPlaceholder(v) {
			continue
		}
		vals[r.Variable] = v
	}

	get := func(name string) *string {
		v, ok := vals[name]
		if !ok {
			return nil
		}
		return &v
	}

	return models.VehicleAttributes{
		Year:         get(VarModelYear),
		Make:         get(VarMake),
		Model:        get(VarModel),
		Trim:         get(VarTrim),
		Engine:       get(VarEngine),
		Displacement: get(VarDisplacement),
		Cylinders:    get(VarCylinders),
		FuelType:     get(VarFuelType),
		VehicleType:  get(VarVehicleType),
		BodyClass:    get(VarBodyClass),
		DriveType:    get(VarDriveType),
		Transmission: get(VarTransmission),
		Manufacturer: get(VarManufacturer),
		PlantCity:    get(VarPlantCity),
		PlantState:   get(VarPlantState),
	}
}

func isPlaceholder(v string) bool {
	switch strings.ToLower(v) {
	case "", "null", "not applicable":
		return true
	}
	return false
}
