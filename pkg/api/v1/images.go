package v1

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/termgate/termgate/pkg/catalog"
	"github.com/termgate/termgate/pkg/logger"
)

// ImageStore is the remembered-image catalog the image routes serve.
type ImageStore interface {
	List(ctx context.Context) ([]string, error)
	Add(ctx context.Context, image string) ([]string, error)
	Remove(ctx context.Context, image string) ([]string, error)
}

// ImagesRouter sets up the remembered container image routes.
func ImagesRouter(images ImageStore) http.Handler {
	routes := &imageRoutes{images: images}
	r := chi.NewRouter()
	r.Get("/", routes.listImages)
	r.Post("/", routes.addImage)
	// Image references contain slashes, so the path parameter is a wildcard.
	r.Delete("/*", routes.removeImage)
	return r
}

type imageRoutes struct {
	images ImageStore
}

type imagesResponse struct {
	Images []string `json:"images"`
}

type addImageRequest struct {
	Image string `json:"image"`
}

// listImages
//
//	@Summary		List remembered images
//	@Description	List the container images previously used for sandboxes, most recent first
//	@Tags			images
//	@Produce		json
//	@Success		200	{object}	imagesResponse
//	@Router			/api/container-images [get]
func (i *imageRoutes) listImages(w http.ResponseWriter, r *http.Request) {
	images, err := i.images.List(r.Context())
	if err != nil {
		logger.Errorf("failed to list remembered images: %v", err)
		http.Error(w, "Failed to list images", http.StatusInternalServerError)
		return
	}
	i.writeImages(w, images)
}

// addImage
//
//	@Summary		Remember an image
//	@Description	Validate an image reference and move it to the front of the remembered list
//	@Tags			images
//	@Accept			json
//	@Produce		json
//	@Param			image	body		addImageRequest	true	"Image to remember"
//	@Success		200		{object}	imagesResponse
//	@Failure		400		{string}	string	"Invalid request"
//	@Router			/api/container-images [post]
func (i *imageRoutes) addImage(w http.ResponseWriter, r *http.Request) {
	var req addImageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Image == "" {
		http.Error(w, "Image reference is required", http.StatusBadRequest)
		return
	}

	images, err := i.images.Add(r.Context(), req.Image)
	if err != nil {
		if errors.Is(err, catalog.ErrInvalidImageRef) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		logger.Errorf("failed to remember image %q: %v", req.Image, err)
		http.Error(w, "Failed to save image", http.StatusInternalServerError)
		return
	}
	i.writeImages(w, images)
}

// removeImage
//
//	@Summary		Forget an image
//	@Description	Remove an image reference from the remembered list
//	@Tags			images
//	@Produce		json
//	@Param			image	path		string	true	"Image reference to forget"
//	@Success		200		{object}	imagesResponse
//	@Failure		400		{string}	string	"Invalid request"
//	@Router			/api/container-images/{image} [delete]
func (i *imageRoutes) removeImage(w http.ResponseWriter, r *http.Request) {
	image, err := url.PathUnescape(chi.URLParam(r, "*"))
	if err != nil || image == "" {
		http.Error(w, "Image reference is required", http.StatusBadRequest)
		return
	}

	images, err := i.images.Remove(r.Context(), image)
	if err != nil {
		logger.Errorf("failed to forget image %q: %v", image, err)
		http.Error(w, "Failed to remove image", http.StatusInternalServerError)
		return
	}
	i.writeImages(w, images)
}

func (i *imageRoutes) writeImages(w http.ResponseWriter, images []string) {
	if images == nil {
		images = []string{}
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(imagesResponse{Images: images}); err != nil {
		http.Error(w, "Failed to encode image list", http.StatusInternalServerError)
	}
}
