// Package docs provides generated OpenAPI documentation.
//
// notejson API
//
//	@title			notejson API
//	@version		1.0
//	@description	Converts photographed handwritten notes into structured JSON using OCR and a vision model.
//
//	@contact.name	API Support
//	@contact.url	https://github.com/jackzampolin/notejson
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host		localhost:8080
//	@BasePath	/
//
//	@schemes	http
package docs

//go:generate swag init -g ../cmd/notejson/serve.go -o ./swagger --parseDependency --parseInternal
