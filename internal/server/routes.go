package server

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.healthz)
	s.router.GET("/providers", s.providers)

	s.router.POST("/polish", s.polish)
	s.router.POST("/polish-doc", s.polishDoc)
	s.router.GET("/download/:filename", s.download)
	s.router.POST("/ask", s.ask)

	kb := s.router.Group("/kb")
	{
		kb.GET("", s.kbInfo)
		kb.POST("/upload", s.kbUpload)
		kb.POST("/save", s.kbSave)
		kb.POST("/query", s.kbQuery)
	}
}
