package handlers

import "github.com/gofiber/fiber/v3"

// ErrUnknownChannel is returned when a channel has no row in the current snapshot
var ErrUnknownChannel = fiber.NewError(fiber.StatusNotFound, "unknown channel")

// ErrInvalidChannel is returned when the channel path parameter is not a channel id
var ErrInvalidChannel = fiber.NewError(fiber.StatusBadRequest, "invalid channel, expected an unsigned 32-bit integer")

// ErrInvalidTimestamp is returned when the ts query parameter cannot be parsed
var ErrInvalidTimestamp = fiber.NewError(fiber.StatusBadRequest, "invalid timestamp, expected <stamp> or <stamp>.<substamp>")

// ErrTimestampRequired is returned when a refresh is requested without a timestamp
var ErrTimestampRequired = fiber.NewError(fiber.StatusBadRequest, "ts query parameter is required")

// ErrRefreshFailed is returned when the cache could not be refreshed; the previous snapshot stays current
var ErrRefreshFailed = fiber.NewError(fiber.StatusBadGateway, "calibration refresh failed, previous snapshot still served")
