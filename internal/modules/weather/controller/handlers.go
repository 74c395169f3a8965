package controller

import (
	"io"
	"net/http"
	"strconv"

	"weatherapi-server/internal/apperr"
	"weatherapi-server/internal/db"
	"weatherapi-server/internal/modules/weather/types"
	"weatherapi-server/internal/utils"
)

const maxReadingsBody = 4 << 20

func (c *weatherControllerImpl) handleCreateStation(w http.ResponseWriter, r *http.Request) {
	inputs, err := readReadings(r)
	if err != nil {
		utils.WriteAppError(w, r, err)
		return
	}
	stored, err := c.service.CreateStation(r.Context(), inputs)
	if err != nil {
		utils.WriteAppError(w, r, err)
		return
	}
	utils.WriteMessage(w, "Weather station %s added successfully", stored[0].DeviceName)
}

func (c *weatherControllerImpl) handleAppendReadings(w http.ResponseWriter, r *http.Request) {
	deviceName := r.PathValue("deviceName")
	inputs, err := readReadings(r)
	if err != nil {
		utils.WriteAppError(w, r, err)
		return
	}
	stored, err := c.service.AppendReadings(r.Context(), deviceName, inputs)
	if err != nil {
		utils.WriteAppError(w, r, err)
		return
	}
	utils.WriteMessage(w, "%d %s sensor readings added successfully", len(stored), deviceName)
}

func (c *weatherControllerImpl) handleMaxPrecipitation(w http.ResponseWriter, r *http.Request) {
	result, err := c.service.MaxPrecipitation(r.Context(), r.PathValue("deviceName"))
	if err != nil {
		utils.WriteAppError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, result)
}

func (c *weatherControllerImpl) handleReadingAt(w http.ResponseWriter, r *http.Request) {
	at, err := utils.ParseDateParam("date", r.PathValue("date"))
	if err != nil {
		utils.WriteAppError(w, r, err)
		return
	}
	snapshot, err := c.service.ReadingAt(r.Context(), r.PathValue("deviceName"), at)
	if err != nil {
		utils.WriteAppError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, snapshot)
}

func (c *weatherControllerImpl) handleMaxTemperature(w http.ResponseWriter, r *http.Request) {
	tr, err := parseRange(r)
	if err != nil {
		utils.WriteAppError(w, r, err)
		return
	}
	result, err := c.service.MaxTemperature(r.Context(), tr)
	if err != nil {
		utils.WriteAppError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, result)
}

func (c *weatherControllerImpl) handleDeleteReadings(w http.ResponseWriter, r *http.Request) {
	deviceName := r.PathValue("deviceName")
	tr, err := parseRange(r)
	if err != nil {
		utils.WriteAppError(w, r, err)
		return
	}
	n, err := c.service.DeleteReadings(r.Context(), deviceName, tr)
	if err != nil {
		utils.WriteAppError(w, r, err)
		return
	}
	utils.WriteMessage(w, "%d %s readings deleted", n, deviceName)
}

func (c *weatherControllerImpl) handlePatchPrecipitation(w http.ResponseWriter, r *http.Request) {
	var patch types.PrecipitationPatch
	if err := utils.DecodeJSON(r, &patch); err != nil {
		utils.WriteAppError(w, r, err)
		return
	}
	reading, err := c.service.PatchPrecipitation(r.Context(), r.PathValue("entryID"), patch)
	if err != nil {
		utils.WriteAppError(w, r, err)
		return
	}
	utils.WriteMessage(w, "Precipitation of the %s entry was successfully updated to %s",
		reading.DeviceName, strconv.FormatFloat(reading.Precipitation, 'f', -1, 64))
}

func readReadings(r *http.Request) ([]types.ReadingInput, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxReadingsBody))
	if err != nil {
		return nil, apperr.InvalidInput("read request body: %v", err)
	}
	return types.DecodeReadings(body)
}

func parseRange(r *http.Request) (db.TimeRange, error) {
	q := r.URL.Query()
	start, err := utils.ParseDateParam("startDate", q.Get("startDate"))
	if err != nil {
		return db.TimeRange{}, err
	}
	end, err := utils.ParseDateParam("endDate", q.Get("endDate"))
	if err != nil {
		return db.TimeRange{}, err
	}
	return db.TimeRange{Start: start, End: end}, nil
}
