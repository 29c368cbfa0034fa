package config

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/go-playground/validator/v10"
)

const (
	FilesKeyImagesPreview = "images_preview"
	FilesKeyUseShortlinks = "use_shortlinks"
	FilesKeyQuota         = "quota"
)

var (
	ErrValueNotBoolean  = errors.New("value must be 0 or 1")
	ErrValueNotPositive = errors.New("value must be a positive integer")
	ErrUnknownFilesKey  = errors.New("unknown files setting")
)

var validate = validator.New()

// Validate validates the configuration using struct tags.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)", e.Namespace(), e.Tag(), e.Value())
		}
		return err
	}
	return nil
}

// CheckFilesValue는 files 설정 값 하나를 검사합니다.
// 불리언은 정확히 "0" 또는 "1", quota는 ASCII 숫자로만 된 문자열이어야 합니다.
func CheckFilesValue(name, value string) error {
	switch name {
	case FilesKeyImagesPreview, FilesKeyUseShortlinks:
		if value != "0" && value != "1" {
			return ErrValueNotBoolean
		}
		return nil
	case FilesKeyQuota:
		if value == "" {
			return ErrValueNotPositive
		}
		for _, c := range value {
			if c < '0' || c > '9' {
				return ErrValueNotPositive
			}
		}
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnknownFilesKey, name)
}

// ApplyFilesValue는 검사를 통과한 값을 files 설정에 반영합니다.
func ApplyFilesValue(files *Files, name, value string) error {
	if err := CheckFilesValue(name, value); err != nil {
		return err
	}
	switch name {
	case FilesKeyImagesPreview:
		files.ImagesPreview = value == "1"
	case FilesKeyUseShortlinks:
		files.UseShortlinks = value == "1"
	case FilesKeyQuota:
		quota, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return ErrValueNotPositive
		}
		files.Quota = quota
	}
	return nil
}
