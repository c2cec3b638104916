// Package models holds the GORM rows behind the gateway repositories. Domain
// types stay tag-free; each model converts with ToDomain and its ...FromDomain constructor.
package models
