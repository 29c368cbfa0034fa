package files

import (
	"golang.org/x/text/language"
)

const (
	msgMissingParameter = "missing_parameter"
	msgInvalidValue     = "invalid_value"
	msgInvalidName      = "invalid_name"
	msgPermissionDenied = "permission_denied"
	msgReservedPath     = "reserved_path"
	msgNotFound         = "not_found"
	msgNotDirectory     = "not_a_directory"
	msgAlreadyExists    = "already_exists"
	msgProtectedItem    = "protected_item"
	msgIntoItself       = "into_itself"
	msgQuotaExceeded    = "quota_exceeded"
	msgOperationFailed  = "operation_failed"
	msgMkdirFailed      = "mkdir_failed"
	msgTrashNotFound    = "trash_item_not_found"
	msgTrashNotEmptied  = "trash_not_emptied"
	msgNotShared        = "not_shared"
	msgCannotShare      = "cannot_share"
	msgUploadTooLarge   = "upload_size_mismatch"
)

var supportedLanguages = []language.Tag{
	language.English,
	language.French,
}

var languageMatcher = language.NewMatcher(supportedLanguages)

var catalog = map[language.Tag]map[string]string{
	language.English: {
		msgMissingParameter: "A required parameter is missing",
		msgInvalidValue:     "Invalid parameter value",
		msgInvalidName:      "Invalid file name",
		msgPermissionDenied: "You are not allowed to perform this action",
		msgReservedPath:     "This location is reserved",
		msgNotFound:         "File or directory not found",
		msgNotDirectory:     "This path is not a directory",
		msgAlreadyExists:    "A file or directory already exists at the destination",
		msgProtectedItem:    "This item is protected",
		msgIntoItself:       "A directory cannot be copied or moved into itself",
		msgQuotaExceeded:    "Not enough storage space left",
		msgOperationFailed:  "The operation failed",
		msgMkdirFailed:      "Unable to create the directory",
		msgTrashNotFound:    "Trash item not found",
		msgTrashNotEmptied:  "The trash could not be emptied completely",
		msgNotShared:        "This file is not shared",
		msgCannotShare:      "Only existing files can be shared",
		msgUploadTooLarge:   "The uploaded file does not match its declared size",
	},
	language.French: {
		msgMissingParameter: "Un paramètre obligatoire est manquant",
		msgInvalidValue:     "Valeur de paramètre invalide",
		msgInvalidName:      "Nom de fichier invalide",
		msgPermissionDenied: "Vous n'avez pas la permission d'effectuer cette action",
		msgReservedPath:     "Cet emplacement est réservé",
		msgNotFound:         "Fichier ou dossier introuvable",
		msgNotDirectory:     "Ce chemin n'est pas un dossier",
		msgAlreadyExists:    "Un fichier ou dossier existe déjà à cet emplacement",
		msgProtectedItem:    "Cet élément est protégé",
		msgIntoItself:       "Un dossier ne peut pas être copié ou déplacé dans lui-même",
		msgQuotaExceeded:    "Espace de stockage insuffisant",
		msgOperationFailed:  "L'opération a échoué",
		msgMkdirFailed:      "Impossible de créer le dossier",
		msgTrashNotFound:    "Élément introuvable dans la corbeille",
		msgTrashNotEmptied:  "La corbeille n'a pas pu être entièrement vidée",
		msgNotShared:        "Ce fichier n'est pas partagé",
		msgCannotShare:      "Seuls les fichiers existants peuvent être partagés",
		msgUploadTooLarge:   "Le fichier envoyé ne correspond pas à sa taille déclarée",
	},
}

// default folder names, keyed by icon name
var defaultFolderNames = map[language.Tag]map[string]string{
	language.English: {
		"documents": "Documents",
		"images":    "Images",
		"videos":    "Videos",
		"musics":    "Music",
	},
	language.French: {
		"documents": "Documents",
		"images":    "Images",
		"videos":    "Vidéos",
		"musics":    "Musique",
	},
}

var defaultFolderOrder = []string{"documents", "images", "videos", "musics"}

// MatchLanguage는 Accept-Language 헤더 값을 지원 언어 중 하나로 맞춥니다
func MatchLanguage(acceptLanguage string) language.Tag {
	_, index := language.MatchStrings(languageMatcher, acceptLanguage)
	return supportedLanguages[index]
}

// Message는 언어별 메시지를 조회하고, 없으면 영어로 대체합니다
func Message(tag language.Tag, key string) string {
	if messages, ok := catalog[normalizeTag(tag)]; ok {
		if msg, ok := messages[key]; ok {
			return msg
		}
	}
	if msg, ok := catalog[language.English][key]; ok {
		return msg
	}
	return key
}

func normalizeTag(tag language.Tag) language.Tag {
	base, _ := tag.Base()
	for _, supported := range supportedLanguages {
		supportedBase, _ := supported.Base()
		if supportedBase == base {
			return supported
		}
	}
	return language.English
}
