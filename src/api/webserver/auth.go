package webserver

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/snowledge-labs/snowvote/src/shared/data"
	"github.com/snowledge-labs/snowvote/src/shared/types"
	"gorm.io/gorm"
)

type Auth struct {
	rdb       *redis.Client
	jwtSecret []byte
	db        *gorm.DB
}

func NewAuth(rdb *redis.Client, secret []byte, db *gorm.DB) Auth {
	return Auth{rdb: rdb, jwtSecret: secret, db: db}
}

func (a Auth) Challenge(c *gin.Context) {
	var req struct {
		DiscordID string `json:"discordId" binding:"required,min=1,max=64"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}

	log.Printf("Auth challenge for discord user %s from IP %s", req.DiscordID, c.ClientIP())

	nonce := uuid.NewString()
	if err := data.SetNonce(c, a.rdb, req.DiscordID, nonce); err != nil {
		log.Printf("Failed to set nonce for %s: %v", req.DiscordID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"err": "failed to create challenge"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"nonce": nonce})
}

func (a Auth) Verify(c *gin.Context) {
	var req struct {
		DiscordID string `json:"discordId" binding:"required,min=1,max=64"`
		Nonce     string `json:"nonce" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}

	nonce, err := data.GetAndDelNonce(c, a.rdb, req.DiscordID)
	if err != nil || nonce != req.Nonce {
		c.JSON(http.StatusUnauthorized, gin.H{"err": "invalid or expired nonce"})
		return
	}

	var user types.User
	if err := a.db.First(&user, "discord_id = ?", req.DiscordID).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"err": "unknown user"})
		return
	}

	claims := jwt.MapClaims{
		"uid": strconv.FormatUint(user.ID, 10),
		"sub": req.DiscordID,
		"exp": time.Now().Add(24 * time.Hour).Unix(),
		"iat": time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.jwtSecret)
	if err != nil {
		log.Printf("Failed to sign token for %s: %v", req.DiscordID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"err": "failed to issue token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": signed})
}
