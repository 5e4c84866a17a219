package utils

import (
	gonanoid "github.com/matoous/go-nanoid/v2"
)

func NewPostID() (string, error) {
	return gonanoid.New()
}

func NewAssetKey() (string, error) {
	return gonanoid.New(16)
}
